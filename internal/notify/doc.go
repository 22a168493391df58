// Package notify delivers fire alerts to people.
//
// A Notifier sends one Alert (the trigger frame as JPEG plus a caption) to a
// recipient. Dispatcher runs each notification on its own goroutine so the
// control loop never waits for it, and hands back a Ticket whose completion
// flag is the only state the worker writes. Delivery is at most once: nothing
// retries a failed send.
package notify
