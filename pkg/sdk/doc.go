// Package sdk provides a typed Go client for the qualify MCP server.
//
// The client wraps mcp-go/client.CallTool with one method per tool and
// retries transport failures via fortify. Tool errors, such as a provider
// failure on the server, are returned as *ToolError without a retry.
//
// Usage:
//
//	transport, _ := client.NewStdioTransport("qualify", "mcp")
//	c := sdk.NewClient(transport)
//	defer c.Close()
//
//	_, _ = c.Initialize(ctx)
//	res, _ := c.GenerateQuestions(ctx, sdk.GenerateRequest{Situation: "...", Count: 5})
//	for _, r := range res.Records {
//		fmt.Println(r.Question)
//	}
package sdk
