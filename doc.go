// Package wpclient is a resilient, caching client for the WordPress REST API.
//
// Two layers make up the client:
//
//   - Executor builds requests against {BaseURL}/{APIPrefix}/{endpoint},
//     injects authentication headers, bounds every attempt with a timeout,
//     retries network failures and 5xx responses with exponential backoff,
//     and spaces request issuances by a minimum interval.
//   - Client caches GET responses in a CacheStore keyed by site, endpoint
//     and sorted parameters. The TTL depends on the endpoint class (static,
//     semi-static, dynamic or session). Successful writes invalidate the
//     written entity, its collection and related listings.
//
// Typical usage:
//
//	cfg := wpclient.DefaultConfig()
//	cfg.BaseURL = "https://example.com"
//	cfg.Auth = wpclient.AuthConfig{Method: wpclient.AuthMethodAppPassword, Username: "admin", Password: "xxxx xxxx xxxx"}
//
//	client, err := wpclient.New(cfg, wpclient.WithSimpleLogger())
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	var posts []Post
//	err = client.GetJSON(ctx, "posts", &posts, wpclient.WithQuery("per_page", "10"))
//
// Every error is a *ClientError; use errors.Is with ErrRateLimited,
// ErrAuthentication and the other sentinels, or errors.As to read the
// status code and rate-limit reset time.
package wpclient
