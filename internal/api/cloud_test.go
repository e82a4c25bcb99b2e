package api

import (
	"net/http"
	"testing"

	"github.com/seantiz/keeper/internal/cloudconfig"
)

func TestCloudStatusBeforeSync(t *testing.T) {
	env := newTestEnv(t)

	var status cloudStatusResponse
	if code := env.do(t, "GET", "/v1/cloud-config", nil, &status); code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if status.Version != 0 || status.Last != nil {
		t.Errorf("status = %+v, want empty", status)
	}
	if len(status.ManagedKeys) != len(cloudconfig.DefaultManagedKeys) {
		t.Errorf("managed keys = %v", status.ManagedKeys)
	}
}

func TestCloudPull(t *testing.T) {
	env := newTestEnv(t)

	var empty cloudconfig.PullResult
	env.do(t, "POST", "/v1/cloud-config/pull", nil, &empty)
	if empty.Status != cloudconfig.StatusEmpty {
		t.Errorf("pull without document = %q, want %q", empty.Status, cloudconfig.StatusEmpty)
	}

	env.portal.set(4, map[string]string{"deviceTimezone": "Europe/Berlin", "hostname": "nas"})

	var pulled cloudconfig.PullResult
	if code := env.do(t, "POST", "/v1/cloud-config/pull", nil, &pulled); code != http.StatusOK {
		t.Fatalf("pull status = %d", code)
	}
	if pulled.Status != cloudconfig.StatusApplied || pulled.Version != 4 {
		t.Errorf("pull = %+v", pulled)
	}
	if len(pulled.Rejected) != 1 || pulled.Rejected[0] != "hostname" {
		t.Errorf("rejected = %v, want [hostname]", pulled.Rejected)
	}

	var entry deviceConfigEntry
	env.do(t, "GET", "/v1/device-config/deviceTimezone", nil, &entry)
	if entry.Value != "Europe/Berlin" {
		t.Errorf("deviceTimezone = %q", entry.Value)
	}

	var status cloudStatusResponse
	env.do(t, "GET", "/v1/cloud-config", nil, &status)
	if status.Version != 4 || status.PulledAt == nil || status.Last == nil {
		t.Errorf("status after pull = %+v", status)
	}

	env.do(t, "POST", "/v1/cloud-config/pull", nil, &pulled)
	if pulled.Status != cloudconfig.StatusUnchanged {
		t.Errorf("second pull = %q, want %q", pulled.Status, cloudconfig.StatusUnchanged)
	}
}

func TestCloudPush(t *testing.T) {
	env := newTestEnv(t)

	var pushed cloudconfig.PushResult
	env.do(t, "POST", "/v1/cloud-config/push", nil, &pushed)
	if pushed.Status != cloudconfig.StatusSkipped {
		t.Errorf("push with nothing set = %q, want %q", pushed.Status, cloudconfig.StatusSkipped)
	}

	env.do(t, "PUT", "/v1/device-config/alertEmails", map[string]string{"value": "ops@example.com"}, nil)

	if code := env.do(t, "POST", "/v1/cloud-config/push", nil, &pushed); code != http.StatusOK {
		t.Fatalf("push status = %d", code)
	}
	if pushed.Status != cloudconfig.StatusPublished || pushed.Version != 1 {
		t.Errorf("push = %+v", pushed)
	}
	doc := env.portal.current()
	if doc == nil || doc.Settings["alertEmails"] != "ops@example.com" {
		t.Errorf("portal document = %+v", doc)
	}
}

func TestCloudPushConflict(t *testing.T) {
	env := newTestEnv(t)
	env.portal.set(7, map[string]string{"deviceTimezone": "UTC"})
	env.do(t, "PUT", "/v1/device-config/alertEmails", map[string]string{"value": "ops@example.com"}, nil)

	var errResp map[string]string
	if code := env.do(t, "POST", "/v1/cloud-config/push", nil, &errResp); code != http.StatusConflict {
		t.Fatalf("push status = %d, want 409", code)
	}
	if errResp["error"] == "" {
		t.Error("expected conflict message")
	}
}
