// Copyright 2025 Joseph Cumines

package remote

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	longrunningpb "cloud.google.com/go/longrunning/autogen/longrunningpb"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/emptypb"
)

// DefaultRetention is how many finished operations are kept for lookup.
const DefaultRetention = 256

// OperationStore runs work in the background and serves its progress via
// google.longrunning.Operations.
type OperationStore struct {
	longrunningpb.UnimplementedOperationsServer

	logger    *slog.Logger
	ops       map[string]*operation
	order     []string
	retention int
	mu        sync.Mutex
}

type operation struct {
	op     *longrunningpb.Operation
	cancel context.CancelFunc
}

// NewOperationStore returns an empty store.
func NewOperationStore(logger *slog.Logger) *OperationStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &OperationStore{
		logger:    logger,
		ops:       make(map[string]*operation),
		retention: DefaultRetention,
	}
}

// Start runs fn in a new goroutine and returns a snapshot of the pending
// operation. The work is detached from the caller's context; it ends when fn
// returns or the operation is cancelled.
func (s *OperationStore) Start(metadata proto.Message, fn func(ctx context.Context) (proto.Message, error)) (*longrunningpb.Operation, error) {
	name := "operations/" + uuid.NewString()
	op := &longrunningpb.Operation{Name: name}
	if metadata != nil {
		md, err := anypb.New(metadata)
		if err != nil {
			return nil, err
		}
		op.Metadata = md
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.ops[name] = &operation{op: op, cancel: cancel}
	s.order = append(s.order, name)
	snapshot := proto.Clone(op).(*longrunningpb.Operation)
	s.mu.Unlock()

	go func() {
		defer cancel()
		res, err := fn(ctx)
		s.finish(name, res, err)
	}()

	return snapshot, nil
}

func (s *OperationStore) finish(name string, res proto.Message, err error) {
	var result *anypb.Any
	if err == nil && res != nil {
		packed, perr := anypb.New(res)
		if perr != nil {
			err = perr
		} else {
			result = packed
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.ops[name]
	if !ok {
		return
	}
	if entry.op.GetDone() {
		// already cancelled
		return
	}
	entry.op.Done = true
	switch {
	case err != nil:
		entry.op.Result = &longrunningpb.Operation_Error{Error: status.Convert(toStatus(err)).Proto()}
	case result != nil:
		entry.op.Result = &longrunningpb.Operation_Response{Response: result}
	}
	s.logger.Debug("operation finished", slog.String("name", name), slog.Any("error", err))
	s.evict()
}

// evict drops the oldest finished operations beyond the retention limit.
func (s *OperationStore) evict() {
	done := 0
	for _, name := range s.order {
		if s.ops[name].op.GetDone() {
			done++
		}
	}
	for i := 0; i < len(s.order) && done > s.retention; {
		name := s.order[i]
		if s.ops[name].op.GetDone() {
			delete(s.ops, name)
			s.order = slices.Delete(s.order, i, i+1)
			done--
			continue
		}
		i++
	}
}

func (s *OperationStore) lookup(name string) (*operation, error) {
	entry, ok := s.ops[name]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "operation %q not found", name)
	}
	return entry, nil
}

// GetOperation implements longrunningpb.OperationsServer.
func (s *OperationStore) GetOperation(ctx context.Context, req *longrunningpb.GetOperationRequest) (*longrunningpb.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.lookup(req.GetName())
	if err != nil {
		return nil, err
	}
	return proto.Clone(entry.op).(*longrunningpb.Operation), nil
}

// ListOperations implements longrunningpb.OperationsServer. Operations are
// listed oldest first; the page token is an opaque offset.
func (s *OperationStore) ListOperations(ctx context.Context, req *longrunningpb.ListOperationsRequest) (*longrunningpb.ListOperationsResponse, error) {
	start := 0
	if tok := req.GetPageToken(); tok != "" {
		n, err := strconv.Atoi(tok)
		if err != nil || n < 0 {
			return nil, status.Errorf(codes.InvalidArgument, "invalid page token %q", tok)
		}
		start = n
	}
	size := int(req.GetPageSize())
	if size <= 0 || size > 100 {
		size = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	resp := &longrunningpb.ListOperationsResponse{}
	if start > len(s.order) {
		start = len(s.order)
	}
	end := min(start+size, len(s.order))
	for _, name := range s.order[start:end] {
		resp.Operations = append(resp.Operations, proto.Clone(s.ops[name].op).(*longrunningpb.Operation))
	}
	if end < len(s.order) {
		resp.NextPageToken = strconv.Itoa(end)
	}
	return resp, nil
}

// DeleteOperation implements longrunningpb.OperationsServer. Deleting a
// running operation cancels it.
func (s *OperationStore) DeleteOperation(ctx context.Context, req *longrunningpb.DeleteOperationRequest) (*emptypb.Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.lookup(req.GetName())
	if err != nil {
		return nil, err
	}
	entry.cancel()
	delete(s.ops, req.GetName())
	s.order = slices.DeleteFunc(s.order, func(n string) bool { return n == req.GetName() })
	return &emptypb.Empty{}, nil
}

// CancelOperation implements longrunningpb.OperationsServer.
func (s *OperationStore) CancelOperation(ctx context.Context, req *longrunningpb.CancelOperationRequest) (*emptypb.Empty, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, err := s.lookup(req.GetName())
	if err != nil {
		return nil, err
	}
	if !entry.op.GetDone() {
		entry.cancel()
		entry.op.Done = true
		entry.op.Result = &longrunningpb.Operation_Error{
			Error: status.New(codes.Canceled, "operation cancelled").Proto(),
		}
	}
	return &emptypb.Empty{}, nil
}
