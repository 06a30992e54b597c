package writers

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/waftester/vulnprobe/pkg/finding"
)

// kindInfo is the display metadata for one finding kind.
type kindInfo struct {
	Title string
	CWE   int
}

// kindKnowledge maps each finding kind to a title and its closest CWE.
var kindKnowledge = map[finding.Kind]kindInfo{
	finding.KindMissingHeader:       {"Missing Security Header", 693},
	finding.KindIncorrectHeader:     {"Incorrect Header Value", 693},
	finding.KindBrokenAuth:          {"Broken Authentication", 287},
	finding.KindAuthBypass:          {"Authorization Bypass", 285},
	finding.KindPrivilegeEscalation: {"Privilege Escalation", 269},
	finding.KindExposedDebug:        {"Exposed Debug Endpoint", 215},
	finding.KindIDOR:                {"Insecure Direct Object Reference", 639},
	finding.KindJWTNoneAlg:          {"JWT Accepts 'none' Algorithm", 347},
	finding.KindJWTWeakAlg:          {"JWT Uses Symmetric Algorithm", 327},
	finding.KindNetworkError:        {"Target Unreachable", 0},
	finding.KindProbeError:          {"Probe Failure", 0},
}

// cweNames maps the CWE IDs above to readable names.
var cweNames = map[int]string{
	215: "Insertion of Sensitive Information Into Debugging Code",
	269: "Improper Privilege Management",
	285: "Improper Authorization",
	287: "Improper Authentication",
	327: "Use of a Broken or Risky Cryptographic Algorithm",
	347: "Improper Verification of Cryptographic Signature",
	639: "Authorization Bypass Through User-Controlled Key",
	693: "Protection Mechanism Failure",
}

var titleCase = cases.Title(language.English)

// kindTitle returns a display title for k. Unknown kinds are title-cased
// from their identifier, e.g. "SOME_KIND" becomes "Some Kind".
func kindTitle(k finding.Kind) string {
	if info, ok := kindKnowledge[k]; ok {
		return info.Title
	}
	return titleCase.String(strings.ReplaceAll(strings.ToLower(string(k)), "_", " "))
}

// kindCWE returns "CWE-n: name" for k, or "" when none applies.
func kindCWE(k finding.Kind) string {
	info, ok := kindKnowledge[k]
	if !ok || info.CWE == 0 {
		return ""
	}
	return cweLabel(info.CWE)
}

func cweLabel(id int) string {
	name := cweNames[id]
	if name == "" {
		return "CWE-" + strconv.Itoa(id)
	}
	return "CWE-" + strconv.Itoa(id) + ": " + name
}
