package registry

import (
	logaction "github.com/convflow/convflow/pkg/actions/log"
	"github.com/convflow/convflow/pkg/actions/setvariable"
	"github.com/convflow/convflow/pkg/actions/webhook"
)

// RegisterDefaults wires the built-in action set. send_email and send_sms
// share the webhook delivery mechanics and differ only in the remote
// service a step points them at.
func (r *Registry) RegisterDefaults() {
	r.RegisterAction(logaction.NewFactory())
	r.RegisterAction(setvariable.NewFactory())
	r.RegisterAction(webhook.NewFactory("call_webhook"))
	r.RegisterAction(webhook.NewFactory("send_email"))
	r.RegisterAction(webhook.NewFactory("send_sms"))
}
