// Package privacy authorizes graph operations before they reach the
// backend.
//
// A Policy is an ordered list of rules. Each rule returns one of the
// decisions Allow, Deny or Skip (nil counts as Skip); evaluation stops at the
// first Allow or Deny. A policy whose rules all skip allows the operation.
//
//	g, err := client.Open(ctx, dialect.Neo4j, cfg, client.WithPolicy(privacy.Policy{
//		privacy.DenyIfNoViewer(),
//		privacy.HasRole("admin"),
//		privacy.OnClass(privacy.AlwaysAllowRule(), dialect.ClassRead, dialect.ClassTraversal),
//		privacy.AlwaysDenyRule(),
//	}))
//
// The viewer travels in the context:
//
//	ctx = privacy.WithViewer(ctx, &privacy.SimpleViewer{UserID: "u1", Roles: []string{"analyst"}})
//
// Commit and rollback are never evaluated. A denied operation fails with an
// error of kind authorization-failed and leaves the transaction active.
package privacy
