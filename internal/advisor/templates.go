package advisor

// Built-in prompt templates. These are configuration data: deployments can
// point config at override files without touching code. Wording here sets
// formatting policy only; the pipeline does not depend on it.

const defaultSystemPrompt = `You are a pragmatic AI adoption consultant. You help small businesses
pick concrete AI tools for a stated problem. Ground every recommendation
in the tool list provided with the request: recommend tools by name with
their real monthly and annual prices, explain what each one solves, and
stay inside the client's stated budget when one is given. Prefer two or
three well-matched tools over a long list.`

const defaultReportTemplate = `A client needs advice on the following business problem:

{{.Query}}
{{if .Context}}
Client context:
{{- range $name, $value := .Context}}
- {{$name}}: {{$value}}
{{- end}}
{{end}}
Available tools (name, category, what it does, pricing, site):
{{.CatalogExcerpt}}
Write the advisory report in markdown with these sections, each introduced
by a "## " heading:

## Recommended Tools
For each recommended tool: name, price, the specific part of the problem it
addresses, and one realistic caveat.

## Implementation Roadmap
A step-by-step rollout plan over the first 90 days, ordered by dependency.

## Architecture Overview
A short prose description of how the recommended tools connect to the
client's existing workflow, written so a diagram could be drawn from it.

## Costs
A table of monthly and annual cost per tool and the total.

## Risks
The top risks of this adoption plan and a mitigation for each.
{{if .WantJSON}}
Respond with a single JSON object instead of markdown. Use keys
"recommended_tools" (array of {name, price_monthly, rationale, caveat}),
"roadmap" (array of {step, description}), "architecture" (string),
"costs" ({per_tool: array of {name, monthly, annual}, total_monthly}),
and "risks" (array of {risk, mitigation}). Output only the JSON object.
{{end}}`

const defaultFollowupTemplate = `A client asked a follow-up question about an advisory report they
received earlier.
{{if .Report}}
Excerpt of the original report:
{{.Report}}
{{end}}
Question: {{.Question}}

Answer concisely in markdown. If the answer depends on details the report
excerpt does not cover, say so rather than inventing them.`
