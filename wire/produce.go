package wire

import "sort"

// TopicProduceData is the set of per-partition message sets for one topic
// within a single produce request, keyed by partition id. Iteration order
// when encoding is made deterministic (ascending partition id) even though
// map iteration order is not, so two encodes of the same request produce
// byte-identical output.
type TopicProduceData map[int32]*MessageSet

// EncodeProduceRequest serializes a single Produce request (Kafka API key
// 0) into a freshly allocated buffer and returns the finished frame, including its
// own 4-byte length prefix. topics maps topic name to per-partition message
// sets already assembled by the request factory.
func EncodeProduceRequest(correlationID int32, clientID string, requiredAcks int16, timeoutMs int32, topics map[string]TopicProduceData) ([]byte, error) {
	e := newEncoder(1024)
	e.push(&lengthField{})

	e.putInt16(0) // api key: Produce
	e.putInt16(0) // api version
	e.putInt32(correlationID)
	if err := e.putString(clientID); err != nil {
		return nil, EncodingError{err}
	}

	e.putInt16(requiredAcks)
	e.putInt32(timeoutMs)

	topicNames := make([]string, 0, len(topics))
	for name := range topics {
		topicNames = append(topicNames, name)
	}
	sort.Strings(topicNames)

	if err := e.putArrayLength(len(topicNames)); err != nil {
		return nil, err
	}

	for _, name := range topicNames {
		if err := e.putString(name); err != nil {
			return nil, EncodingError{err}
		}

		partitions := topics[name]
		ids := make([]int32, 0, len(partitions))
		for id := range partitions {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		if err := e.putArrayLength(len(ids)); err != nil {
			return nil, err
		}

		for _, id := range ids {
			e.putInt32(id)
			e.push(&lengthField{})
			if err := partitions[id].encode(e); err != nil {
				return nil, EncodingError{err}
			}
			e.pop()
		}
	}

	e.pop() // top-level length
	return e.bytes(), nil
}

// ProduceResponseBlock is one partition's acknowledgement within a
// ProduceResponse.
type ProduceResponseBlock struct {
	Err    KError
	Offset int64
}

// ProduceResponse is the decoded broker reply to a single produce request,
// FIFO-correlated with the ProduceRequest that produced it: correlation is
// by send order, per AckWaitQueue, and the decoded CorrelationID is not
// checked against the request's.
type ProduceResponse struct {
	CorrelationID int32
	Blocks        map[string]map[int32]ProduceResponseBlock
}

// GetBlock returns the per-partition block for (topic, partition), or nil
// if the response is missing it (a protocol violation the caller must
// treat as ErrBadProduceResponse).
func (r *ProduceResponse) GetBlock(topic string, partition int32) *ProduceResponseBlock {
	parts := r.Blocks[topic]
	if parts == nil {
		return nil
	}
	b, ok := parts[partition]
	if !ok {
		return nil
	}
	return &b
}

// EncodeProduceResponse serializes resp into a frame body (no length
// prefix: the caller, typically a mock broker, is responsible for framing).
// It exists mainly for tests that need to hand a Connector a realistic
// broker response without standing up a real socket on the other end.
func EncodeProduceResponse(resp *ProduceResponse) ([]byte, error) {
	e := newEncoder(256)

	e.putInt32(resp.CorrelationID)

	topicNames := make([]string, 0, len(resp.Blocks))
	for name := range resp.Blocks {
		topicNames = append(topicNames, name)
	}
	sort.Strings(topicNames)

	if err := e.putArrayLength(len(topicNames)); err != nil {
		return nil, err
	}

	for _, name := range topicNames {
		if err := e.putString(name); err != nil {
			return nil, EncodingError{err}
		}

		parts := resp.Blocks[name]
		ids := make([]int32, 0, len(parts))
		for id := range parts {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		if err := e.putArrayLength(len(ids)); err != nil {
			return nil, err
		}

		for _, id := range ids {
			block := parts[id]
			e.putInt32(id)
			e.putInt16(int16(block.Err))
			e.putInt64(block.Offset)
		}
	}

	return e.bytes(), nil
}

// DecodeProduceResponse parses a ProduceResponse out of a complete frame
// body (the length prefix already stripped by the StreamReader).
func DecodeProduceResponse(body []byte) (*ProduceResponse, error) {
	d := newDecoder(body)

	correlationID, err := d.getInt32()
	if err != nil {
		return nil, DecodingError{err}
	}

	numTopics, err := d.getArrayLength()
	if err != nil {
		return nil, DecodingError{err}
	}

	resp := &ProduceResponse{
		CorrelationID: correlationID,
		Blocks:        make(map[string]map[int32]ProduceResponseBlock, numTopics),
	}

	for i := 0; i < numTopics; i++ {
		topic, err := d.getString()
		if err != nil {
			return nil, DecodingError{err}
		}

		numPartitions, err := d.getArrayLength()
		if err != nil {
			return nil, DecodingError{err}
		}

		parts := make(map[int32]ProduceResponseBlock, numPartitions)
		for j := 0; j < numPartitions; j++ {
			partition, err := d.getInt32()
			if err != nil {
				return nil, DecodingError{err}
			}
			errCode, err := d.getInt16()
			if err != nil {
				return nil, DecodingError{err}
			}
			offset, err := d.getInt64()
			if err != nil {
				return nil, DecodingError{err}
			}
			parts[partition] = ProduceResponseBlock{Err: KError(errCode), Offset: offset}
		}
		resp.Blocks[topic] = parts
	}

	return resp, nil
}
