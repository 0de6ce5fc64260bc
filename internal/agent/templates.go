package agent

import (
	"text/template"

	"HatterAgent/internal/llm"
)

const promptHeader = `You are {{.AgentName}}, an assistant that manages Hats Protocol roles.

Recent conversation:
{{.RecentMessages}}

Wallet:
{{.WalletInfo}}

`

const promptFooter = `
Chain must be one of {{.SupportedChains}}. Hat ids are uint256 values written
either in base 10 or as 0x-prefixed hexadecimal; copy them exactly as the user
wrote them. Addresses are 0x-prefixed 20-byte hex strings. Use null for
anything the user did not state.

Fields:
{{.Fields}}
Respond with a single JSON object containing exactly these fields.`

var (
	mintTemplate = template.Must(template.New("mint").Parse(promptHeader +
		`Extract the parameters of the most recent request to mint (give) a hat:
the chain to use, the hat id and the address that should wear the hat.
` + promptFooter))

	revokeTemplate = template.Must(template.New("revoke").Parse(promptHeader +
		`Extract the parameters of the most recent request to revoke (remove) a hat:
the chain to use, the hat id, the address currently wearing the hat and
whether that wearer remains in good standing after the revocation.
` + promptFooter))

	balanceTemplate = template.Must(template.New("balance").Parse(promptHeader +
		`Extract the parameters of the most recent request to check a hat balance:
the chain to query, the hat id and the address whose balance is requested.
` + promptFooter))
)

func chainField(supported []string) llm.Field {
	return llm.Field{
		Name:        "chain",
		Type:        llm.TypeString,
		Description: "network to act on",
		Enum:        supported,
		Nullable:    true,
	}
}

func hatIDField() llm.Field {
	return llm.Field{
		Name:        "hatId",
		Type:        llm.TypeString,
		Description: "hat id exactly as written by the user",
		Nullable:    true,
	}
}

func addressField(name, description string) llm.Field {
	return llm.Field{Name: name, Type: llm.TypeString, Description: description, Nullable: true}
}

func mintSchema(supported []string) llm.Schema {
	return llm.Schema{Name: "mint_hat", Fields: []llm.Field{
		chainField(supported),
		hatIDField(),
		addressField("toAddress", "address receiving the hat"),
	}}
}

func revokeSchema(supported []string) llm.Schema {
	return llm.Schema{Name: "revoke_hat", Fields: []llm.Field{
		chainField(supported),
		hatIDField(),
		addressField("fromAddress", "address currently wearing the hat"),
		{Name: "goodStanding", Type: llm.TypeBoolean, Description: "true when the wearer stays in good standing", Nullable: true},
	}}
}

func balanceSchema(supported []string) llm.Schema {
	return llm.Schema{Name: "hat_balance", Fields: []llm.Field{
		chainField(supported),
		hatIDField(),
		addressField("userAddress", "address whose balance is requested"),
	}}
}
