package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/couchcryptid/adcontext-bridge/internal/domain"
)

// Step names, in execution order.
const (
	StepSetMobile        = "setMobile"
	StepSetGeo           = "setGeo"
	StepSetDevice        = "setDevice"
	StepSetMetadata      = "setMetadata"
	StepVerify           = "verify"
	StepInvokeCompletion = "invokeCompletion"
)

// Consumer-side globals.
const (
	SlotMobile     = "bwsMobile"
	SlotGeo        = "bwsGeo"
	SlotDevice     = "bwsDevice"
	SlotMetadata   = "bwsdk"
	CompletionHook = "onSdkDataReady"
)

// Step is one script evaluated against the consumer.
type Step struct {
	Name   string
	Script string
}

// BuildSteps turns snapshots into the six ordered delivery steps. A nil
// snapshot assigns null to its slot instead of skipping the step.
func BuildSteps(s domain.Snapshots) []Step {
	return []Step{
		{Name: StepSetMobile, Script: assignScript(SlotMobile, s.Mobile)},
		{Name: StepSetGeo, Script: assignScript(SlotGeo, s.Geo)},
		{Name: StepSetDevice, Script: assignScript(SlotDevice, s.Device)},
		{Name: StepSetMetadata, Script: assignScript(SlotMetadata, &s.Metadata)},
		{Name: StepVerify, Script: verifyScript},
		{Name: StepInvokeCompletion, Script: completionScript},
	}
}

// assignScript sets window.<slot> to the encoded value. The JSON document is
// embedded as a JS string literal and parsed in the page, so quotes and line
// separators in field values cannot break out of the statement.
func assignScript[T any](slot string, v *T) string {
	if v == nil {
		return nullScript(slot)
	}
	encoded, err := domain.Encode(v)
	if err != nil {
		return nullScript(slot)
	}
	return fmt.Sprintf(
		"try { window.%[1]s = JSON.parse(%[2]s); } catch (e) { window.%[1]s = null; console.error('failed to parse %[1]s', e); }",
		slot, jsString(encoded),
	)
}

func nullScript(slot string) string {
	return "window." + slot + " = null;"
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

var verifyScript = func() string {
	var b strings.Builder
	b.WriteString("(function () {\n")
	b.WriteString("  var kinds = [")
	for i, slot := range []string{SlotMobile, SlotGeo, SlotDevice, SlotMetadata, CompletionHook} {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q + ':' + typeof window.%s", slot, slot)
	}
	b.WriteString("];\n")
	b.WriteString("  console.debug('bridge data check', kinds.join(' '));\n")
	b.WriteString("  return kinds.join(' ');\n")
	b.WriteString("})()")
	return b.String()
}()

// completionScript invokes the hook when it is defined and returns "true",
// otherwise it returns "false" and the pipeline decides about the retry.
var completionScript = fmt.Sprintf(`(function () {
  if (typeof window.%[1]s !== 'function') {
    return 'false';
  }
  try {
    window.%[1]s(window.%[2]s, window.%[3]s, window.%[4]s, window.%[5]s);
  } catch (e) {
    console.debug('%[1]s threw', e && e.message);
  }
  return 'true';
})()`, CompletionHook, SlotMobile, SlotGeo, SlotDevice, SlotMetadata)

// BasicMobileScript is the one-shot payload used by direct injection: the
// application id and the advertising identifier, nothing else.
func BasicMobileScript(appID, adID string) string {
	payload, err := json.Marshal(struct {
		AppID    string `json:"app_id"`
		IDFAAdID string `json:"idfa_adid"`
	}{appID, adID})
	if err != nil {
		return nullScript(SlotMobile)
	}
	return "window." + SlotMobile + " = " + string(payload) + ";"
}
