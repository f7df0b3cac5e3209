// Package sqsflow implements a shim N-1 flow (spec.md §9 "shim" DIF
// variant) carried over AWS SQS: two queues act as an unreliable
// point-to-point medium, one per direction. It implements the same
// rmt.LowerFlow surface a dtp.Flow does, so the router can push PDUs
// through it exactly as it would through a nested normal IPCP's flow.
//
// Grounded on the teacher's aws.go (getSQSService/SendToQueue/
// ReceiveAndDeleteFromQueue), generalised from its hardcoded
// credentials and fixed queue-name scheme to an injected session and
// caller-chosen queue URLs.
package sqsflow

import (
	"container/list"
	"context"
	"encoding/base64"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/op/go-logging"

	"github.com/rlite-go/normal/internal/buffer"
	"github.com/rlite-go/normal/internal/dtp"
	"github.com/rlite-go/normal/internal/dtperr"
	"github.com/rlite-go/normal/internal/pduft"
)

// Flow is a shim lower flow backed by a pair of SQS queues.
type Flow struct {
	localPort uint32
	selfQueue string
	peerQueue string

	svc   *sqs.SQS
	upper dtp.Upper
	log   *logging.Logger

	// PduftList is the reverse index of PDUFT entries routed through
	// this shim flow, same role as dtp.Flow.PduftList.
	PduftList pduft.List

	rmtqMu sync.Mutex
	rmtq   *list.List

	txWakeMu sync.Mutex
	txWake   chan struct{}

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a shim flow. sess is an AWS session the caller has
// already configured with credentials and region; selfQueueURL is
// polled for inbound PDUs, peerQueueURL is where outbound PDUs go.
func New(sess client.ConfigProvider, localPort uint32, selfQueueURL, peerQueueURL string, upper dtp.Upper, log *logging.Logger) *Flow {
	f := &Flow{
		localPort: localPort,
		selfQueue: selfQueueURL,
		peerQueue: peerQueueURL,
		svc:       sqs.New(sess),
		upper:     upper,
		log:       log,
		rmtq:      list.New(),
		txWake:    make(chan struct{}),
		stop:      make(chan struct{}),
	}
	f.wg.Add(1)
	go f.receiveLoop()
	return f
}

// Close stops the receive loop.
func (f *Flow) Close() {
	close(f.stop)
	f.wg.Wait()
}

// LocalPort implements pduft.FlowHandle / rmt.LowerFlow.
func (f *Flow) LocalPort() uint32 {
	return f.localPort
}

// SduWrite sends b's bytes as one SQS message and frees b. SQS gives
// no backpressure signal back to a sender, so this shim never returns
// BackPressure: the medium is modeled as unreliable, not flow
// controlled, matching spec §9's note that shim DIFs may have a
// thinner capability set than a normal IPCP.
func (f *Flow) SduWrite(b *buffer.Buffer, maySleep bool) error {
	body := base64.StdEncoding.EncodeToString(b.Data())
	b.Free()

	_, err := f.svc.SendMessage(&sqs.SendMessageInput{
		MessageBody: aws.String(body),
		QueueUrl:    aws.String(f.peerQueue),
	})
	if err != nil {
		return &dtperr.TransportError{Reason: "sqs send failed", Err: err}
	}
	return nil
}

// EnqueueRMT and WaitForTxRoom exist to satisfy rmt.LowerFlow; since
// SduWrite here never backpressures, they are never exercised on the
// happy path but keep the router's retry logic uniform across lower
// flow kinds.
func (f *Flow) EnqueueRMT(b *buffer.Buffer) {
	f.rmtqMu.Lock()
	f.rmtq.PushBack(b)
	f.rmtqMu.Unlock()
}

func (f *Flow) WaitForTxRoom(ctx context.Context) error {
	f.txWakeMu.Lock()
	ch := f.txWake
	f.txWakeMu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Flow) receiveLoop() {
	defer f.wg.Done()
	for {
		select {
		case <-f.stop:
			return
		default:
		}

		out, err := f.svc.ReceiveMessage(&sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(f.selfQueue),
			MaxNumberOfMessages: aws.Int64(10),
			WaitTimeSeconds:     aws.Int64(3),
		})
		if err != nil {
			if f.log != nil {
				f.log.Warningf("sqsflow: receive on %s failed: %v", f.selfQueue, err)
			}
			continue
		}

		var toDelete []*sqs.DeleteMessageBatchRequestEntry
		for i, m := range out.Messages {
			raw, decErr := base64.StdEncoding.DecodeString(aws.StringValue(m.Body))
			if decErr == nil {
				f.upper.Deliver(buffer.New(raw))
			}
			toDelete = append(toDelete, &sqs.DeleteMessageBatchRequestEntry{
				Id:            aws.String(strconv.Itoa(i)),
				ReceiptHandle: m.ReceiptHandle,
			})
		}
		if len(toDelete) > 0 {
			f.svc.DeleteMessageBatch(&sqs.DeleteMessageBatchInput{
				QueueUrl: aws.String(f.selfQueue),
				Entries:  toDelete,
			})
		}
	}
}
