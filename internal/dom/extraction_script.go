package dom

// buildDomTreeScript returns a function expression taking
// {doHighlightElements, focusHighlightIndex, viewportExpansion, debugMode}
// and returning {rootId, map, perfMetrics?}. Ids are assigned after a node's
// children, so every child id is smaller than its parent's.
func buildDomTreeScript() string {
	return `(args) => {
	const doHighlightElements = !!args.doHighlightElements;
	const focusHighlightIndex = typeof args.focusHighlightIndex === 'number' ? args.focusHighlightIndex : -1;
	const viewportExpansion = args.viewportExpansion || 0;
	const debugMode = !!args.debugMode;

	const started = performance.now();
	const metrics = { nodes: 0, elements: 0, texts: 0, highlighted: 0, skipped: 0 };

	const HASH = {};
	let nextId = 0;
	let highlightIndex = 0;

	const CONTAINER_ID = 'tab-inspector-highlight-container';

	const interactiveTags = new Set([
		'a', 'button', 'input', 'select', 'textarea', 'details', 'summary', 'label', 'option'
	]);
	const interactiveRoles = new Set([
		'button', 'link', 'menuitem', 'menuitemradio', 'menuitemcheckbox', 'radio', 'checkbox',
		'tab', 'switch', 'slider', 'spinbutton', 'combobox', 'searchbox', 'textbox', 'listbox',
		'option', 'scrollbar'
	]);
	const skipTags = new Set(['script', 'style', 'noscript', 'svg', 'link', 'meta', 'head', 'template']);

	if (doHighlightElements) {
		const old = document.getElementById(CONTAINER_ID);
		if (old) old.remove();
	}

	const xpathOf = (el) => {
		const segments = [];
		let cur = el;
		while (cur && cur.nodeType === Node.ELEMENT_NODE) {
			const parent = cur.parentNode;
			if (parent instanceof ShadowRoot) {
				break;
			}
			let index = 1;
			let sib = cur.previousElementSibling;
			while (sib) {
				if (sib.nodeName === cur.nodeName) index++;
				sib = sib.previousElementSibling;
			}
			segments.unshift(cur.nodeName.toLowerCase() + '[' + index + ']');
			cur = parent;
		}
		return segments.join('/');
	};

	const isElementVisible = (el) => {
		if (el.offsetWidth === 0 && el.offsetHeight === 0 && el.getClientRects().length === 0) {
			return false;
		}
		const style = window.getComputedStyle(el);
		return style.visibility !== 'hidden' && style.display !== 'none' && parseFloat(style.opacity || '1') > 0;
	};

	const isTextVisible = (textNode) => {
		const range = document.createRange();
		range.selectNodeContents(textNode);
		const rect = range.getBoundingClientRect();
		const parent = textNode.parentElement;
		return rect.width > 0 && rect.height > 0 && !!parent && isElementVisible(parent);
	};

	const inViewport = (rect) => {
		if (viewportExpansion === -1) return true;
		return rect.bottom >= -viewportExpansion &&
			rect.top <= window.innerHeight + viewportExpansion &&
			rect.right >= -viewportExpansion &&
			rect.left <= window.innerWidth + viewportExpansion;
	};

	const isTopElement = (el) => {
		const rects = el.getClientRects();
		if (!rects || rects.length === 0) return false;
		const rect = rects[0];
		if (!inViewport(rect)) return true;
		const x = rect.left + rect.width / 2;
		const y = rect.top + rect.height / 2;
		const root = el.getRootNode();
		const probe = (root instanceof ShadowRoot ? root : document).elementFromPoint(x, y);
		if (!probe) return false;
		let cur = probe;
		while (cur) {
			if (cur === el) return true;
			cur = cur.parentElement;
		}
		return false;
	};

	const isInteractive = (el) => {
		const tag = el.tagName.toLowerCase();
		if (interactiveTags.has(tag)) {
			return !(el.disabled || el.getAttribute('aria-disabled') === 'true');
		}
		const role = el.getAttribute('role');
		if (role && interactiveRoles.has(role)) return true;
		if (el.hasAttribute('onclick') || el.getAttribute('contenteditable') === 'true') return true;
		const tabindex = el.getAttribute('tabindex');
		if (tabindex !== null && tabindex !== '-1') return true;
		return window.getComputedStyle(el).cursor === 'pointer' && el.children.length === 0;
	};

	const drawHighlight = (el, index) => {
		let container = document.getElementById(CONTAINER_ID);
		if (!container) {
			container = document.createElement('div');
			container.id = CONTAINER_ID;
			container.style.position = 'fixed';
			container.style.pointerEvents = 'none';
			container.style.top = '0';
			container.style.left = '0';
			container.style.width = '100%';
			container.style.height = '100%';
			container.style.zIndex = '2147483647';
			(document.body || document.documentElement).appendChild(container);
		}
		const colors = ['#FF0000', '#00AA00', '#0000FF', '#FFA500', '#800080', '#008080', '#FF69B4', '#4B0082'];
		const color = colors[index % colors.length];
		const rect = el.getBoundingClientRect();
		const box = document.createElement('div');
		box.style.position = 'fixed';
		box.style.border = '2px solid ' + color;
		box.style.backgroundColor = color + '1A';
		box.style.boxSizing = 'border-box';
		box.style.top = rect.top + 'px';
		box.style.left = rect.left + 'px';
		box.style.width = rect.width + 'px';
		box.style.height = rect.height + 'px';
		const label = document.createElement('div');
		label.textContent = String(index);
		label.style.position = 'absolute';
		label.style.top = '-16px';
		label.style.right = '0';
		label.style.background = color;
		label.style.color = 'white';
		label.style.fontSize = '11px';
		label.style.padding = '0 3px';
		box.appendChild(label);
		container.appendChild(box);
	};

	const walk = (node) => {
		metrics.nodes++;

		if (node.nodeType === Node.TEXT_NODE) {
			const text = (node.textContent || '').trim();
			if (!text) return null;
			const id = String(nextId++);
			HASH[id] = { type: 'TEXT_NODE', text: text, isVisible: isTextVisible(node) };
			metrics.texts++;
			return id;
		}

		if (node.nodeType !== Node.ELEMENT_NODE) return null;

		const tag = node.tagName.toLowerCase();
		if (skipTags.has(tag) || node.id === CONTAINER_ID) {
			metrics.skipped++;
			return null;
		}

		const data = {
			tagName: tag,
			xpath: xpathOf(node),
			attributes: {},
			children: [],
			isVisible: false,
			isTopElement: false,
			isInteractive: false,
			isInViewport: false
		};

		for (const attr of node.attributes) {
			data.attributes[attr.name] = attr.value;
		}

		const rect = node.getBoundingClientRect();
		data.isVisible = isElementVisible(node);
		if (data.isVisible) {
			data.isTopElement = isTopElement(node);
			data.isInViewport = inViewport(rect);
			if (data.isTopElement && data.isInViewport) {
				data.isInteractive = isInteractive(node);
			}
		}

		if (data.isInteractive) {
			data.highlightIndex = highlightIndex++;
			data.viewportCoordinates = { x: rect.left, y: rect.top, width: rect.width, height: rect.height };
			data.pageCoordinates = {
				x: rect.left + window.scrollX,
				y: rect.top + window.scrollY,
				width: rect.width,
				height: rect.height
			};
			data.viewport = { width: window.innerWidth, height: window.innerHeight };
			metrics.highlighted++;
			if (doHighlightElements && (focusHighlightIndex < 0 || focusHighlightIndex === data.highlightIndex)) {
				drawHighlight(node, data.highlightIndex);
			}
		}

		if (node.shadowRoot) {
			data.shadowRoot = true;
			for (const child of node.shadowRoot.childNodes) {
				const childId = walk(child);
				if (childId !== null) data.children.push(childId);
			}
		}

		if (tag === 'iframe') {
			try {
				const inner = node.contentDocument || (node.contentWindow && node.contentWindow.document);
				if (inner && inner.documentElement) {
					const childId = walk(inner.documentElement);
					if (childId !== null) data.children.push(childId);
				}
			} catch (e) {
				if (debugMode) console.warn('tab-inspector: cross-origin iframe skipped', e);
			}
		} else {
			for (const child of node.childNodes) {
				const childId = walk(child);
				if (childId !== null) data.children.push(childId);
			}
		}

		const id = String(nextId++);
		HASH[id] = data;
		metrics.elements++;
		return id;
	};

	const rootId = walk(document.body || document.documentElement);

	const result = { rootId: rootId, map: HASH };
	if (debugMode) {
		metrics.elapsedMs = performance.now() - started;
		result.perfMetrics = metrics;
	}
	return result;
}`
}
