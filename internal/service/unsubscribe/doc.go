// Package unsubscribe issues and resolves the links recipients use to opt
// out without authenticating.
//
// Two link forms exist. The short token (<base>/u/<token>) is canonical for
// all outbound messages: an 8-character opaque token stored in the redirect
// table, non-enumerable and bound to one contact. The HMAC-signed link
// (<base>/v1/unsubscribe/<contact_id>/<signature>) is stateless and
// recomputable; it remains supported on the verification path as
// compatibility for messages sent before tokens existed, and serves as the
// default redirect target for contacts that never carried a legacy URL.
package unsubscribe
