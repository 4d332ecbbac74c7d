// Package validation provides commit rules for object changes and their
// evaluation before a commit reaches the database.
//
// # Core Concepts
//
//   - Change: one object insert, update or delete about to be committed
//   - Rule: a function of a change returning Allow, Deny or Skip
//   - Policy: an ordered list of rules
//
// # Rule Evaluation
//
// Rules are evaluated in order until one returns a final decision:
//
//   - Allow: accepts the change and stops evaluation
//   - Deny: rejects the change and stops evaluation
//   - Skip: continues to the next rule
//
// A change no rule decided on is accepted.
//
// # Defining Policies
//
//	policy := validation.Policy{
//	    validation.RequireAttributes(),
//	    validation.CheckLengths(),
//	    validation.OnEntity(validation.DenyOperationRule(validation.OpDelete), "Gallery"),
//	}
//
// Rejected changes are reported together by Validate as a
// *cayenne.ValidationError with one Failure per rejected change or
// attribute:
//
//	if err := validation.Validate(ctx, policy, changes); err != nil {
//	    var verr *cayenne.ValidationError
//	    if errors.As(err, &verr) {
//	        for _, f := range verr.Failures {
//	            log.Print(f)
//	        }
//	    }
//	}
//
// # Viewer
//
// Rules such as HasRole, IsOwner and TenantRule read the Viewer attached
// to the context with WithViewer.
package validation
