package models

const (
	// ContextSeparator sits between rendered chunks handed to the model.
	ContextSeparator   = "\n\n---\n\n"
	NoDocumentationMsg = "No relevant documentation found."
	NoPageContentFmt   = "No content found for URL: %s"
	RetrieveErrorFmt   = "Error retrieving documentation: %v"
	PageErrorFmt       = "Error retrieving page content: %v"

	// TitleDelimiter splits "Page Title - Site Name" page titles.
	TitleDelimiter = " - "

	MetadataSource = "source"
)

var (
	SystemPrompt = `You are an expert at n8n, the versatile open-source workflow automation tool, with complete access to all its documentation, examples, API references, and community resources.
Your unique expertise lies in generating JSON-based templates from workflows provided by the user. These workflows can be flowcharts, information flows, or sketches captured during interviews with subject matter experts.
Your only job is to assist with this task; do not answer questions outside the scope of generating these templates.

When you receive a workflow, immediately consult the documentation with the retrieve_relevant_documentation tool to find up-to-date guidelines on building a template and representing it as JSON.
Use list_documentation_pages and get_page_content when a whole page is more useful than individual chunks.
If it is not clear how to build a template from the provided workflow, ask for clarification before proceeding.
Do not wait for user confirmation before taking action; execute your process using the available documentation and tools.
Always make sure your output is a correctly formatted JSON template that follows n8n best practices and can be imported directly.

Here is a sample template:
%s
`

	SampleTemplate = `{"name":"My workflow 4","nodes":[{"parameters":{},"id":"1f3866f2-4686-41a0-bf40-cfaaae6af6bb","name":"Start","type":"n8n-nodes-base.start","typeVersion":1,"position":[0,0]},{"parameters":{"values":{"string":[{"value":"Hello from your n8n template!"}]},"options":{}},"id":"7da22598-9c91-409f-b43d-c4040f33e2b8","name":"Set Message","type":"n8n-nodes-base.set","typeVersion":1,"position":[240,0]},{"parameters":{"jsCode":"return [\n\t{\n\t\tjson: {\n\t\t\tresults: $input.first().json.propertyName,\n\t\t}\n\t}\n];"},"id":"18ee4a60-e830-48fc-bd6c-ebb008878265","name":"Code Output","type":"n8n-nodes-base.code","typeVersion":1,"position":[480,0]}],"pinData":{},"connections":{"Start":{"main":[[{"node":"Set Message","type":"main","index":0}]]},"Set Message":{"main":[[{"node":"Code Output","type":"main","index":0}]]}},"active":false,"settings":{"executionOrder":"v1"},"versionId":"74b853de-0cc3-4c70-ba5d-360d98c6a9e9","meta":{"instanceId":"a31f19ecec5cab72f21d39661cee2ab4a81417de7dbfdaace9095824177c1f12"},"id":"Sp9nU2ybc6eKhS6Q","tags":[]}`
)
