package runner

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/networkteam/pageprobe/driver"
)

// jsLiteral encodes v as a JavaScript literal.
func jsLiteral(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		// Only called with strings and string pairs
		panic(err)
	}
	return string(b)
}

func storageScript(entries [][2]string) string {
	var sb strings.Builder
	sb.WriteString("(() => {\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "  window.localStorage.setItem(%s, %s);\n", jsLiteral(e[0]), jsLiteral(e[1]))
	}
	sb.WriteString("})()")
	return sb.String()
}

// hookScript calls window[namespace][name](...args) and awaits the result.
func hookScript(namespace, name string, args []any) (string, error) {
	if args == nil {
		args = []any{}
	}
	encodedArgs, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encoding hook args: %w", err)
	}
	return fmt.Sprintf(`(async () => {
  const ns = window[%[1]s];
  if (!ns || typeof ns[%[2]s] !== "function") {
    throw new Error("test hook " + %[1]s + "." + %[2]s + " is not defined");
  }
  return await ns[%[2]s](...%[3]s);
})()`, jsLiteral(namespace), jsLiteral(name), encodedArgs), nil
}

// textQueryScript evaluates a text query in the page. It returns whether
// the query satisfies state and tags the matched element.
func textQueryScript(q driver.TextQuery, state driver.WaitState, tag string) string {
	return fmt.Sprintf(`((q, state, tag, attr) => {
  const visible = (el) => {
    const style = window.getComputedStyle(el);
    const rect = el.getBoundingClientRect();
    return style.visibility !== "hidden" && style.display !== "none" && rect.width > 0 && rect.height > 0;
  };
  const norm = (s) => (s || "").replace(/\s+/g, " ").trim().toLowerCase();
  const contains = (text, sub) => norm(text).includes(norm(sub));
  let candidates;
  if (q.selector) {
    candidates = Array.from(document.querySelectorAll(q.selector))
      .filter((el) => contains(el.textContent, q.hasText));
  } else {
    const all = Array.from(document.body ? document.body.querySelectorAll("*") : [])
      .filter((el) => contains(el.innerText || el.textContent, q.text));
    candidates = all.filter((el) => !all.some((other) => other !== el && el.contains(other)));
  }
  const needsVisible = state === "visible" || state === "hidden";
  const match = candidates.find((el) => !needsVisible || visible(el));
  if (tag) {
    document.querySelectorAll("[" + attr + "=" + JSON.stringify(tag) + "]").forEach((el) => el.removeAttribute(attr));
    if (match) {
      match.setAttribute(attr, tag);
    }
  }
  return state === "hidden" || state === "detached" ? !match : !!match;
})(%s, %s, %s, %s)`,
		jsLiteral(map[string]string{"selector": q.Selector, "hasText": q.HasText, "text": q.Text}),
		jsLiteral(string(state)), jsLiteral(tag), jsLiteral(driver.TargetAttribute))
}

// truthy follows JavaScript truthiness for JSON values.
func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0 && !math.IsNaN(v)
	case int:
		return v != 0
	case int64:
		return v != 0
	case string:
		return v != ""
	default:
		return true
	}
}

// formatValue renders a script result for output lines.
func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
