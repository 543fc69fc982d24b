// Package httpclient builds the outgoing HTTP requests for query load.
//
// A [RequestBuilder] holds everything that is fixed for the run: the
// endpoint, validated headers, optional basic auth credentials and whether
// W3C trace context is propagated. [RequestBuilder.Build] turns an encoded
// parameter string into a GET, or a form POST when the string is too long
// for a request line:
//
//	builder, err := httpclient.NewRequestBuilder(httpclient.Options{
//		Endpoint: "http://localhost:8983/solr/books/select",
//		Headers:  map[string]string{"X-Tenant": "acme"},
//	})
//	if err != nil {
//		return err
//	}
//	req, err := builder.Build(ctx, "q=title%3Ago&wt=json")
//
// [NewClient] returns an *http.Client tuned for sustained concurrent load.
package httpclient
