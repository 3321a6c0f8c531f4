//go:build !wasm
// +build !wasm

// Package gorm provides a GORM-backed authcore.Store. It works with any
// dialect GORM supports (PostgreSQL, MySQL, SQLite, etc.); tests run against
// SQLite.
//
// # Database Schema
//
// AutoMigrate creates two tables:
//   - users: accounts, with unique indexes on email and federated_id
//   - token_records: consumed single-use tokens and revoked sessions, keyed by jti
//
// Open the database with TranslateError enabled so unique violations surface
// as gorm.ErrDuplicatedKey and map onto authcore.ErrEmailTaken and friends:
//
//	db, _ := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
//	_ = gormstore.AutoMigrate(db)
//	store := gormstore.New(db)
package gorm
