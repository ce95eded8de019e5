// Package flow drives the browser login flow against the identity provider.
//
// A fresh attempt issues a single-use state and redirects to the provider's
// authorization endpoint; the form_post response comes back through the same
// entry point, where the state is consumed, the code exchanged, and the
// external identity resolved into a local login outcome via the binder.
//
// Two variants exist, selected by Config.Variant: the default
// authorization-code grant, and a resource-owner credentials grant
// (Authenticate) for providers without a browser-redirect flow.
//
// Sessions stay with the host application behind the SessionManager
// interface; the flow only reports outcomes and redirect targets.
package flow
