// Package overlay presents cached documents in place over the current page.
//
// Opening pushes one synthetic history entry tagged with overlay state, saves
// the address and scroll position, and locks the viewport. Every close path
// converges on the same teardown: release the scroll lock, restore the saved
// address and offset, reset the transition scope, and announce the close.
// Closing an already closed overlay is a no-op, so the API close, the back
// button, and a full route change can all race without double teardown.
package overlay
