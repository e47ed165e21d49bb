package prompt

// Names of the built-in question templates.
const (
	HealthcareQualifying = "healthcare"
	CustomerSupport      = "support"
)

// DefaultTemplate is used when no template is named.
const DefaultTemplate = HealthcareQualifying

var healthcareQualifying = MustNew(HealthcareQualifying, `
You are a healthcare sales expert. Based on this client situation: {input}

Generate exactly {num} qualifying questions to understand the client's needs and pain points.
For each question, provide an explanation of why it's effective.

Return the response in JSON format, like this:
[
    {{"question": "What specific challenges are you facing?", "explanation": "This helps identify core issues."}},
    {{"question": "How are you currently addressing this?", "explanation": "This reveals their current approach."}},
    ...
]
`).WithInfo(
	"Healthcare Sales Qualifying Questions",
	"Qualifying questions a salesperson asks to understand a healthcare prospect's needs.",
)

var customerSupport = MustNew(CustomerSupport, `
You are a customer support specialist. Based on this issue: {input}

Generate exactly {num} questions to diagnose the customer's problem.

Return the response in JSON format, like this:
[
    {{"question": "Can you describe the issue in detail?", "explanation": "This helps gather more context."}},
    ...
]
`).WithInfo(
	"Customer Support Diagnostics",
	"Questions that help a support specialist diagnose a customer's problem.",
)

// Builtins returns the templates compiled into the binary.
func Builtins() []*Template {
	return []*Template{healthcareQualifying, customerSupport}
}
