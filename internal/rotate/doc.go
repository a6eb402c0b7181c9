// Package rotate provides a file writer that rolls the live file over on a
// time boundary (midnight by default), keeps a bounded number of dated
// backups, and hands every completed rotation to registered hooks.
//
// Hooks replace the override-the-rollover approach: anything that must happen
// after a rotation (archiving, compression, notification) is composed in
// with WithHook rather than built into the writer.
package rotate
