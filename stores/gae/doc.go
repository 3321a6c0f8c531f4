//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore implementation of authcore.Store,
// for deployments on Google Cloud. Data can be isolated per tenant through
// Datastore namespaces.
//
// # Datastore Kinds
//
//   - User: accounts, keyed by user id
//   - EmailIndex: normalized email to user id, keeps emails unique
//   - FederatedIndex: federated subject to user id, keeps links unique
//   - TokenRecord: consumed single-use tokens and revoked sessions, keyed by jti
//
// Uniqueness is enforced inside transactions over the index kinds, since
// Datastore has no unique constraints of its own.
//
// # Usage
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	store := gae.NewStore(client, "")  // default namespace
package gae
