// Package till provides a lightweight client for the Till cache server
// (github.com/psobot/till). Till stores text values under string keys with a
// server-side lifespan and exposes them over a small HTTP surface rooted at
// /api/v1/object/. The Client type maps Get/Set/Exists/IsActive onto that
// surface and never reports errors to callers: every failure folds into the
// operation's negative result ("" and false, or simply nothing for Set), so
// a miss and an unreachable server look the same from the outside.
package till
