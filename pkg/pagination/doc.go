// Package pagination drains a paginated client listing into memory.
//
// The upstream API answers either with a bare JSON list (a complete,
// unpaginated result) or with an object carrying one page of records under
// "results", "clients" or "data" and an optional next-page link under
// "next" or "links.next". Pages are fetched strictly one after another,
// since each next URL is only known once the previous page is decoded.
//
// Example usage:
//
//	apiClient, _ := client.New(client.DefaultConfig(token, userAgent))
//	fetcher := pagination.NewFetcher(apiClient)
//	records, err := fetcher.FetchAll(ctx, "https://api.upmind.com/clients")
//
// The fetcher:
//   - Follows the next cursor until no further page is announced
//   - Resolves relative next links against the current page URL
//   - Fails on the first transport or payload shape error (no partial data)
//   - Rejects a next link that revisits an already fetched page
package pagination
