package notify

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQS struct {
	mu       sync.Mutex
	messages []map[string]any
	fail     bool
}

func (f *fakeSQS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/x-amz-json-1.0")
	if f.fail {
		w.Header().Set("X-Amzn-Query-Error", "AWS.SimpleQueueService.NonExistentQueue;Sender")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"__type":"com.amazonaws.sqs#QueueDoesNotExist","message":"The specified queue does not exist."}`)
		return
	}

	raw, _ := io.ReadAll(r.Body)
	var in map[string]any
	_ = json.Unmarshal(raw, &in)
	f.messages = append(f.messages, in)

	body, _ := in["MessageBody"].(string)
	sum := md5.Sum([]byte(body))
	json.NewEncoder(w).Encode(map[string]string{
		"MessageId":        "msg-1",
		"MD5OfMessageBody": hex.EncodeToString(sum[:]),
	})
}

func newFakeSQS(t *testing.T) (*fakeSQS, *SQSPublisher) {
	t.Helper()
	fake := &fakeSQS{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client := sqs.New(sqs.Options{
		Region:           "us-east-1",
		Credentials:      aws.AnonymousCredentials{},
		BaseEndpoint:     aws.String(srv.URL),
		RetryMaxAttempts: 1,
	})
	return fake, NewSQSPublisher(client, srv.URL+"/000000000000/submissions")
}

func TestSQSPublisher_Publish(t *testing.T) {
	fake, pub := newFakeSQS(t)

	err := pub.Publish(context.Background(), TopicSubmissionReceived, map[string]string{"id": "abc"})
	if err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if len(fake.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(fake.messages))
	}

	body, _ := fake.messages[0]["MessageBody"].(string)
	var env Envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		t.Fatalf("message body is not an envelope: %v", err)
	}
	if env.Topic != TopicSubmissionReceived || env.ID == "" || env.OccurredAt.IsZero() {
		t.Errorf("unexpected envelope %+v", env)
	}
	if string(env.Data) != `{"id":"abc"}` {
		t.Errorf("unexpected data %s", env.Data)
	}
}

func TestSQSPublisher_Error(t *testing.T) {
	fake, pub := newFakeSQS(t)
	fake.fail = true

	if err := pub.Publish(context.Background(), TopicSubmissionReceived, struct{}{}); err == nil {
		t.Fatal("expected error from failing queue")
	}
}

func TestSQSPublisher_UnencodablePayload(t *testing.T) {
	_, pub := newFakeSQS(t)
	if err := pub.Publish(context.Background(), "x", make(chan int)); err == nil {
		t.Fatal("expected encode error")
	}
}

func TestNop(t *testing.T) {
	if err := (Nop{}).Publish(context.Background(), "x", nil); err != nil {
		t.Errorf("Nop.Publish() = %v", err)
	}
}
