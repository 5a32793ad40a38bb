// Package http provides the HTTP capability used by the download engine.
//
// The client performs exactly one attempt per call; retrying is the download
// task's concern. A download worker needs only four observables from a
// response, collected in Response:
//   - the readable body stream
//   - the advertised content length (negative when unknown)
//   - the content encoding identifier (empty for the default encoding)
//   - whether the body arrived chunked-transfer encoded
//
// # Usage
//
//	client := http.NewClient(http.DefaultOptions())
//
//	req, _ := nethttp.NewRequest(nethttp.MethodGet, url, nil)
//	resp, err := client.Do(ctx, req)
//	if err != nil {
//	    return err
//	}
//	defer resp.Body.Close()
package http
