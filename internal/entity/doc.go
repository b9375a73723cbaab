// Package entity defines the synchronizable data model shared by the local
// store, the sync engine and the server.
//
// Every entity embeds SyncMeta and implements Record, which exposes the
// entity's columns in schema order. Repositories on both sides build their
// SQL from these columns, so a table's shape is declared once, here.
//
// Wire rows use snake_case column names. Boolean-ish columns travel as 0/1
// (see Flag) and epochs as 64-bit integers.
package entity
