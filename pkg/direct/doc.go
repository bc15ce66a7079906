// Package direct talks to the backend resource endpoints over plain HTTP,
// bypassing the managed connection handle. Feature code uses it when a
// managed round trip already timed out and the handle is suspected stuck.
//
// Every call has its own bounded timeout (10s by default). A 401 whose body
// says the JWT expired fires the registered expiry handler once per arming;
// concurrent calls that hit the same condition do not fire it again.
// WithReporter forwards each round trip's outcome, typically to
// connection.Manager.Report, so bypass traffic keeps the health record
// current.
//
//	d, _ := direct.New(cfg.URL, tokenFn, direct.WithAPIKey(cfg.APIKey))
//	d.OnTokenExpired(func() { store.SignOut(context.Background()) })
//	rows, err := direct.SelectInto[Project](ctx, d, "projects", q)
//
// Beacon sends an update without waiting for the response. It is best
// effort: nothing retries it and its failure is only logged.
package direct
