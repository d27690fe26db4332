// Package checkout enforces email verification at the storefront edges:
// sign-in, checkout and order creation.
//
// Logged-in shoppers without a verified email are blocked from checkout
// and nudged with a fresh verification email. Guests either verify their
// address through a short-lived pending-checkout record or elect account
// creation, in which case the account is provisioned on the spot and
// verification runs against it. Hosts that finalize orders in one step
// call ValidateOrder, which aborts unverified orders with
// ErrCheckoutBlocked; hosts that hold orders use PlaceOrder, which
// creates them as verification-pending for release to pending by the
// verified-event subscription. Admins bypass every gate.
package checkout
