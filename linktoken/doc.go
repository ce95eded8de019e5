// Package linktoken persists the durable link between an external identity
// (the provider's unionid or openid) and a local account.
//
// A token is created unbound (user id zero) on the first successful exchange
// for a never-seen subject, refreshed on every later exchange, and bound to
// exactly one local account through the interactive binding step. Unbound
// tokens are abandoned binding attempts and are swept by the cleanup worker.
package linktoken
