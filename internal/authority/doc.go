// Package authority is the HTTP client for the central inventory authority.
//
// Every call is bounded by its own deadline: a short probe for the active
// session check, a long one for the catalog download, and a middle value for
// everything else. Transport failures and deadlines come back as
// *inventory.NetworkError; non-2xx replies come back as *StatusError with any
// detail message the server supplied.
//
//	client, err := authority.NewClient(cfg.Server, authority.DefaultTimeouts())
//	if err != nil {
//		return err
//	}
//	session, err := client.ActiveSession(ctx)
package authority
