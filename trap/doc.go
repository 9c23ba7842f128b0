// Package trap holds the per-thread trap and scope state used while guest
// machine code runs, and the post-unwind repair that follows a trap.
//
// A State has three independent slots:
//
//	trap PC    last fault address, written by the interceptor, read-and-cleared
//	           when the call boundary composes the error
//	scope      innermost active RecoveryPoint; the unwinder resumes there
//	fix-stack  set when a stack overflow consumed the guard page; acted on and
//	           cleared by RunPostUnwindActions
//
// States are never shared. Each execution thread (goroutine) owns one and
// threads it explicitly, usually through its context.Context:
//
//	ctx, st := trap.Ensure(ctx)
//	ok := st.Protect(func() {
//	    runGuest(ctx)
//	})
//	if ok == 0 {
//	    st.RunPostUnwindActions()
//	    pc := st.TakeTrapPC()
//	}
//
// Protect is the recovery point: Unwind (and Raise) transfer control back to
// the innermost Protect on the goroutine, and faults with an address that the
// Go runtime turns into panics are recorded as traps at that address.
package trap
