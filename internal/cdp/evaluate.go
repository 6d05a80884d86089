package cdp

import (
	"context"
	"encoding/json"

	"tab-inspector/pkg/apperr"
)

type evaluateParams struct {
	Expression    string `json:"expression"`
	AwaitPromise  bool   `json:"awaitPromise"`
	ReturnByValue bool   `json:"returnByValue"`
}

type remoteObject struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Description string          `json:"description,omitempty"`
}

type evaluateResult struct {
	Result           *remoteObject `json:"result"`
	ExceptionDetails *struct {
		Text         string        `json:"text"`
		LineNumber   int           `json:"lineNumber"`
		ColumnNumber int           `json:"columnNumber"`
		Exception    *remoteObject `json:"exception,omitempty"`
	} `json:"exceptionDetails,omitempty"`
}

// Evaluate runs expression in the page, awaiting promises and returning the
// value by JSON. When arg is non-nil, expression must evaluate to a function
// and is called with arg.
//
// A nil value with a nil error means the script produced undefined. A throw
// inside the page is returned as a *ScriptException.
func (s *Session) Evaluate(ctx context.Context, expression string, arg any) (json.RawMessage, error) {
	const op = "Evaluate"

	if arg != nil {
		encoded, err := json.Marshal(arg)
		if err != nil {
			return nil, apperr.InvalidReqError(op, "arg", err)
		}

		expression = "(" + expression + ")(" + string(encoded) + ")"
	}

	raw, err := s.Invoke(ctx, "Runtime.evaluate", evaluateParams{
		Expression:    expression,
		AwaitPromise:  true,
		ReturnByValue: true,
	})
	if err != nil {
		return nil, err
	}

	var res evaluateResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, apperr.WrapWithReason(op, apperr.CodeMalformedResult, err, "undecodable_evaluate_result")
	}

	if res.ExceptionDetails != nil {
		exc := &ScriptException{
			Text:   res.ExceptionDetails.Text,
			Line:   res.ExceptionDetails.LineNumber,
			Column: res.ExceptionDetails.ColumnNumber,
		}
		if res.ExceptionDetails.Exception != nil {
			exc.Description = res.ExceptionDetails.Exception.Description
		}

		s.logger.Debug("Script raised an exception")

		return nil, apperr.Wrap(op, apperr.CodeScriptException, exc, map[string]any{
			apperr.MetaReason:   "script_exception",
			apperr.MetaEndpoint: s.endpoint,
		})
	}

	if res.Result == nil {
		return nil, apperr.WrapErrorWithReason(op, apperr.CodeMalformedResult, "missing_result")
	}

	if res.Result.Type == "undefined" {
		return nil, nil
	}

	if len(res.Result.Value) == 0 {
		return json.RawMessage("null"), nil
	}

	return res.Result.Value, nil
}

// EvaluateInto evaluates expression and decodes the value into out. It
// reports false when the script produced undefined.
func (s *Session) EvaluateInto(ctx context.Context, expression string, arg, out any) (bool, error) {
	const op = "EvaluateInto"

	raw, err := s.Evaluate(ctx, expression, arg)
	if err != nil {
		return false, err
	}

	if raw == nil {
		return false, nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return false, apperr.WrapWithReason(op, apperr.CodeMalformedResult, err, "unexpected_value_shape")
	}

	return true, nil
}
