// Package models contains the GORM persistence models for the dues ledger.
// Domain entities carry no ORM tags; each model here owns its table mapping
// and converts to and from its domain entity with ToDomain and FromDomain.
//
// Tables:
//   - members: due owners and their monthly fee
//   - due_records: monthly and event obligations
//   - transactions: receipts and administrative adjustments
//   - allocations: how much of a transaction settled each due
package models
