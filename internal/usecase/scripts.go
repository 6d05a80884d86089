package usecase

import (
	"context"
	"encoding/json"

	"tab-inspector/internal/ports"
	"tab-inspector/pkg/apperr"
)

// evaluateInto decodes the script's value into out and reports false when
// the script produced undefined.
func evaluateInto(ctx context.Context, session ports.PageSession, expression string, arg, out any) (bool, error) {
	raw, err := session.Evaluate(ctx, expression, arg)
	if err != nil {
		return false, err
	}

	if raw == nil {
		return false, nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return false, apperr.WrapWithReason("evaluateInto", apperr.CodeMalformedResult, err, "unexpected_value_shape")
	}

	return true, nil
}

// drawHighlightScript takes {selector, border, background, containerId,
// overlayAttr} and returns the number of matched elements that got at least
// one overlay.
func drawHighlightScript() string {
	return `(args) => {
	let container = document.getElementById(args.containerId);
	if (!container) {
		container = document.createElement('div');
		container.id = args.containerId;
		container.style.position = 'fixed';
		container.style.pointerEvents = 'none';
		container.style.top = '0';
		container.style.left = '0';
		container.style.width = '100%';
		container.style.height = '100%';
		container.style.zIndex = '2147483647';
		container.style.backgroundColor = 'transparent';
		(document.body || document.documentElement).appendChild(container);
	}

	let elements;
	try {
		elements = document.querySelectorAll(args.selector);
	} catch (e) {
		throw new Error('invalid selector: ' + args.selector);
	}

	let matched = 0;
	elements.forEach((el) => {
		const rects = el.getClientRects();
		let drawn = false;
		for (const rect of rects) {
			if (rect.width === 0 || rect.height === 0) continue;
			const overlay = document.createElement('div');
			overlay.setAttribute(args.overlayAttr, 'true');
			overlay.style.position = 'fixed';
			overlay.style.border = args.border;
			overlay.style.backgroundColor = args.background;
			overlay.style.pointerEvents = 'none';
			overlay.style.boxSizing = 'border-box';
			overlay.style.top = rect.top + 'px';
			overlay.style.left = rect.left + 'px';
			overlay.style.width = rect.width + 'px';
			overlay.style.height = rect.height + 'px';
			overlay.style.zIndex = '2147483647';
			container.appendChild(overlay);
			drawn = true;
		}
		if (drawn) matched++;
	});

	return matched;
}`
}

// clearHighlightScript takes {containerId} and returns how many overlays it
// removed.
func clearHighlightScript() string {
	return `(args) => {
	const container = document.getElementById(args.containerId);
	if (!container) return 0;
	const count = container.childElementCount;
	container.remove();
	return count;
}`
}
