// Package proxy forwards inbound requests to the backend chosen by the load
// balancer and streams the response back.
//
// A connection failure marks the target unhealthy on the spot and the
// request is retried once against a different backend. An upstream timeout
// is answered with 504 and never retried, since a slow backend is not a dead
// one. Request and response bodies are streamed, never buffered.
package proxy
