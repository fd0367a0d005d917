package schema_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonny/chatbridge/internal/domain/model"
	"github.com/jonny/chatbridge/internal/domain/schema"
)

func validActivity() model.Activity {
	return model.NewActivity("svc", "groupme", time.Unix(1483677146, 0))
}

func TestValidate_Send(t *testing.T) {
	tests := []struct {
		name    string
		msg     model.Message
		wantErr string
	}{
		{
			name: "note ok",
			msg:  model.NewNote("u1", "hello"),
		},
		{
			name: "image ok",
			msg:  model.NewMedia("u1", model.ObjectTypeImage, "https://example.com/a.png", ""),
		},
		{
			name:    "missing recipient",
			msg:     model.NewNote("", "hello"),
			wantErr: "to.id failed required",
		},
		{
			name:    "note without content",
			msg:     model.NewNote("u1", "  "),
			wantErr: "object.content failed required_for_note",
		},
		{
			name:    "media without url",
			msg:     model.NewMedia("u1", model.ObjectTypeVideo, "", ""),
			wantErr: "object.url failed required_for_media",
		},
		{
			name:    "bad url",
			msg:     model.NewMedia("u1", model.ObjectTypeImage, "not a url", ""),
			wantErr: "object.url failed url",
		},
		{
			name: "unknown type",
			msg: model.Message{
				Object: model.MessageObject{Type: "Sticker", Content: "x"},
				To:     model.Recipient{ID: "u1"},
			},
			wantErr: `object.type "Sticker" not in`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.Validate(tt.msg, schema.ContractSend)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			var verr *schema.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidate_Activity(t *testing.T) {
	a := validActivity()
	a.Actor = model.Actor{ID: "a1", Type: model.ActorTypePerson, Name: "alice"}
	a.Target = model.Actor{ID: "g1", Type: model.ActorTypeGroup}
	a.Object = model.Object{ID: "m1", Type: model.ObjectTypeNote, Content: "hi"}

	if err := schema.Validate(a, schema.ContractActivity); err != nil {
		t.Fatalf("expected valid activity, got %v", err)
	}

	missingActor := a
	missingActor.Actor.ID = ""
	if err := schema.Validate(&missingActor, schema.ContractActivity); err == nil {
		t.Error("expected error for missing actor id")
	}

	badGenerator := a
	badGenerator.Generator.Type = model.ActorTypePerson
	if err := schema.Validate(badGenerator, schema.ContractActivity); err == nil {
		t.Error("expected error for non-Service generator")
	}
}

func TestValidate_ContractMismatch(t *testing.T) {
	if err := schema.Validate(model.NewNote("u1", "x"), schema.ContractActivity); err == nil {
		t.Error("expected error validating a message as an activity")
	}
	if err := schema.Validate(model.NewNote("u1", "x"), "bogus"); !errors.Is(err, schema.ErrUnknownContract) {
		t.Errorf("expected ErrUnknownContract, got %v", err)
	}
}
