package engine

import (
	"context"
)

// list returns one page of listable fleets as identifier-only models.
func (e *Engine) list(ctx context.Context, req *Request) *ProgressSignal {
	resp, err := e.api.DescribeFleets(ctx, buildListRequest(req.NextToken))
	if err != nil {
		return Failed(OperationList, TranslateError(err).WithOperation(string(OperationList)), nil)
	}
	if resp == nil {
		return ListSuccess(nil, "")
	}
	return ListSuccess(listedModels(resp.Fleets), resp.NextToken)
}
