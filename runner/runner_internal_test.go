package runner

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/networkteam/pageprobe/driver"
)

func TestTruthy(t *testing.T) {
	t.Parallel()

	for _, v := range []any{true, 1.0, "x", map[string]any{}, []any{}} {
		assert.True(t, truthy(v), "%#v", v)
	}
	for _, v := range []any{nil, false, 0.0, ""} {
		assert.False(t, truthy(v), "%#v", v)
	}
}

func TestFormatValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "602.5", formatValue(602.5))
	assert.Equal(t, "1280", formatValue(1280.0))
	assert.Equal(t, "null", formatValue(nil))
	assert.Equal(t, `{"hp":3}`, formatValue(map[string]any{"hp": 3}))
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindAssertion, classify(fmt.Errorf("%w: nope", ErrAssertion)))
	assert.Equal(t, KindNavigation, classify(fmt.Errorf("%w: %w", driver.ErrNavigation, driver.ErrTimeout)))
	assert.Equal(t, KindTimeout, classify(errors.Join(driver.ErrTimeout, errors.New("deadline"))))
	assert.Equal(t, KindScript, classify(errors.New("ReferenceError")))
}

func TestStepError(t *testing.T) {
	t.Parallel()

	err := &StepError{Kind: KindTimeout, Step: 3, Label: "wait #book", Err: errors.New("context deadline exceeded")}
	assert.Equal(t, "step 3 (wait #book): context deadline exceeded", err.Error())
	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrAssertion)

	setup := &StepError{Kind: KindNavigation, Label: "navigate http://localhost:8000", Err: errors.New("refused")}
	assert.Equal(t, "setup (navigate http://localhost:8000): refused", setup.Error())
	assert.ErrorIs(t, setup, ErrNavigation)
}

func TestHookScript(t *testing.T) {
	t.Parallel()

	script, err := hookScript("__testHooks", "openChat", nil)
	assert.NoError(t, err)
	assert.Contains(t, script, `ns["openChat"](...[])`)

	_, err = hookScript("__testHooks", "bad", []any{func() {}})
	assert.Error(t, err)
}

func TestTextQueryScript(t *testing.T) {
	t.Parallel()

	script := textQueryScript(driver.TextQuery{Selector: "button", HasText: `say "hi"`}, driver.StateVisible, "step-2")
	assert.Contains(t, script, `{"hasText":"say \"hi\"","selector":"button","text":""}`)
	assert.Contains(t, script, `"visible", "step-2", "data-pageprobe-target")`)
}

func TestDebugArtifactName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "debug-log-scroll-fix-4.png", debugArtifactName("log-scroll-fix", 4))
	assert.Equal(t, "debug-my-probe-1.png", debugArtifactName("my probe", 1))
}

func TestAbbreviate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a < b", abbreviate("a\n  < b"))
	long := abbreviate("document.getElementById('story-log').getBoundingClientRect().height < 100")
	assert.Len(t, []rune(long), 60)
}
