package api

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hazyhaar/pagenorm/pkg/kit"
)

// RegisterMCPTools registers the word-level tools on the server.
func RegisterMCPTools(srv *server.MCPServer, svc *Service) {
	register := func(tool mcp.Tool, ep kit.Endpoint, decode kit.ToolDecoder) {
		kit.RegisterMCPTool(srv, tool, kit.Logging(svc.logger, tool.Name)(ep), decode)
	}

	register(mcp.NewTool("expand_word",
		mcp.WithDescription("Expand an abbreviated word using the domain and general dictionaries, falling back to character rules."),
		mcp.WithString("word", mcp.Required(), mcp.Description("The word as transcribed, e.g. dūs")),
	), svc.expandWordEndpoint(), decodeWord)

	register(mcp.NewTool("normalize_word",
		mcp.WithDescription("Rewrite a word toward its standard spelling using the lexicon's superlemma."),
		mcp.WithString("word", mcp.Required(), mcp.Description("The word to normalize")),
	), svc.normalizeWordEndpoint(), decodeWord)

	register(mcp.NewTool("normalize_text",
		mcp.WithDescription("Expand abbreviations in a line of text and optionally normalize its spelling."),
		mcp.WithString("text", mcp.Required(), mcp.Description("A line of transcription")),
		mcp.WithBoolean("normalize", mcp.Description("Also run spelling normalization (requires a lexicon)")),
	), svc.normalizeTextEndpoint(), func(req mcp.CallToolRequest) (any, error) {
		return &textReq{
			Text:      req.GetString("text", ""),
			Normalize: req.GetBool("normalize", false),
		}, nil
	})

	register(mcp.NewTool("lookup_lexicon",
		mcp.WithDescription("List every lexicon entry (superlemma, lemma) stored for a word-form."),
		mcp.WithString("word", mcp.Required(), mcp.Description("The word-form to look up")),
	), svc.lookupLexiconEndpoint(), decodeWord)

	register(mcp.NewTool("list_dicts",
		mcp.WithDescription("List the loaded abbreviation dictionaries with their tier and entry count."),
	), svc.listDictsEndpoint(), func(mcp.CallToolRequest) (any, error) {
		return nil, nil
	})
}

func decodeWord(req mcp.CallToolRequest) (any, error) {
	word, err := req.RequireString("word")
	if err != nil {
		return nil, err
	}
	return &wordReq{Word: word}, nil
}
