// File: interceptor/chain.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package interceptor

import (
	"time"

	"github.com/momentics/nexuskit/middleware"
)

// Chain holds separate request (outgoing) and response (incoming)
// interceptor sequences.
type Chain struct {
	request  []Interceptor
	response []Interceptor
}

func NewChain() *Chain {
	return &Chain{}
}

func (c *Chain) UseRequest(steps ...Interceptor) {
	c.request = append(c.request, steps...)
}

func (c *Chain) UseResponse(steps ...Interceptor) {
	c.response = append(c.response, steps...)
}

// Request runs the request-side chain over data, honoring Delayed via
// time.Sleep, and returns the final bytes plus any merged metadata
// written into ctx.Metadata.
func (c *Chain) Request(data []byte, ctx *middleware.Context) ([]byte, error) {
	return run(c.request, data, ctx, DirectionRequest)
}

// Response runs the response-side chain over data.
func (c *Chain) Response(data []byte, ctx *middleware.Context) ([]byte, error) {
	return run(c.response, data, ctx, DirectionResponse)
}

func run(steps []Interceptor, data []byte, ctx *middleware.Context, dir Direction) ([]byte, error) {
	for _, step := range steps {
		result, err := step.Intercept(data, ctx)
		if err != nil {
			return nil, err
		}
		switch result.Kind() {
		case Passthrough:
			data = result.Data()
		case Modified:
			data = result.Data()
			for k, v := range result.Metadata() {
				ctx.Metadata[k] = v
			}
		case Rejected:
			kind := ErrRequestRejected
			if dir == DirectionResponse {
				kind = ErrResponseRejected
			}
			return nil, &InterceptorError{Kind: kind, Name: step.Name(), Info: result.Reason()}
		case Delayed:
			time.Sleep(result.Delay())
			data = result.Data()
		}
	}
	return data, nil
}
