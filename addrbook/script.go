package addrbook

// collectScript runs inside the page and returns a JSON array of every
// visible interactive element with the attributes the hash is built from.
// The XPath produced here is structural (tag plus sibling index at each
// step) so it stays valid as long as the surrounding tree shape does.
const collectScript = `() => {
	const interactive = [
		'a[href]', 'button', 'input', 'select', 'textarea',
		'[role="button"]', '[role="link"]', '[role="checkbox"]',
		'[role="radio"]', '[role="tab"]', '[role="menuitem"]',
		'[role="combobox"]', '[role="textbox"]', '[role="option"]',
		'[onclick]', '[contenteditable="true"]',
	];

	const xpathOf = (el) => {
		const steps = [];
		for (let n = el; n && n.nodeType === Node.ELEMENT_NODE; n = n.parentNode) {
			const tag = n.nodeName.toLowerCase();
			let idx = 1;
			for (let s = n.previousElementSibling; s; s = s.previousElementSibling) {
				if (s.nodeName.toLowerCase() === tag) idx++;
			}
			steps.unshift(tag + '[' + idx + ']');
		}
		return '/' + steps.join('/');
	};

	const visible = (el) => {
		const r = el.getBoundingClientRect();
		if (r.width === 0 && r.height === 0) return false;
		const st = window.getComputedStyle(el);
		return st.display !== 'none' && st.visibility !== 'hidden';
	};

	const seen = new Set();
	const out = [];
	for (const el of document.querySelectorAll(interactive.join(','))) {
		if (seen.has(el) || !visible(el)) continue;
		seen.add(el);
		out.push({
			tag: el.nodeName.toLowerCase(),
			id: el.id || '',
			name: el.getAttribute('name') || '',
			role: el.getAttribute('role') || '',
			ariaLabel: el.getAttribute('aria-label') || '',
			placeholder: el.getAttribute('placeholder') || '',
			type: el.getAttribute('type') || '',
			text: (el.innerText || el.value || '').slice(0, 200),
			xpath: xpathOf(el),
		});
	}
	return JSON.stringify(out);
}`
