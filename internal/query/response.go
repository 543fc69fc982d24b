package query

// Response is the parsed result of a submitted request.
type Response struct {
	NumFound int64
	// QTime is the server-reported processing time in milliseconds.
	QTime  int64
	Status int
	Header map[string]interface{}
}

// HeaderValue returns a response header entry, or nil.
func (r *Response) HeaderValue(key string) interface{} {
	if r == nil || r.Header == nil {
		return nil
	}
	return r.Header[key]
}
