package tools

import "context"

// SendMessageToUser is the always-present tool an agent calls to hand
// control back to the user. Executing it never fails and always returns an
// empty user_message, since the loop is now waiting on the human.
type SendMessageToUser struct{}

// NewSendMessageToUser returns the builtin send_message_to_user tool.
func NewSendMessageToUser() *SendMessageToUser { return &SendMessageToUser{} }

func (t *SendMessageToUser) Info() Info {
	return Info{
		Name:        "send_message_to_user",
		Description: "Send a message to the user.",
		Parameters: []Parameter{
			{
				Name:        "agent_message",
				Type:        "string",
				Description: "The message to send to the user. Can be empty if passively waiting.",
				Required:    false,
			},
		},
	}
}

func (t *SendMessageToUser) Execute(_ context.Context, args map[string]any) (Result, error) {
	msg, _ := args["agent_message"].(string)
	return Result{
		Success: true,
		Content: msg,
		Output:  map[string]any{"user_message": ""},
	}, nil
}
