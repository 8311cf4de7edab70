// Package httputil provides shared HTTP response/request helpers so every
// endpoint emits the same JSON shapes and error envelope.
package httputil
