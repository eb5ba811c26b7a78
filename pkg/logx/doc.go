// Package logx is the bot's structured logging, a thin layer over zerolog.
//
// Console output is human readable with a short caller, the file sink writes
// JSON lines, and the optional Telegram sink forwards records at or above a
// minimum level as formatted text (level in bold, keys as code, stacks as a
// pre block), rate limited and never blocking the caller.
package logx
