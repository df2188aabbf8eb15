package httpapi

import (
	"net/http"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sentinel-access/sentinel/server/internal/sentinel/types"
)

// Terminals may post either JSON or a protobuf Struct. Responses use the
// same encoding as the request.

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	pb := isProtobuf(r)

	var req types.HeartbeatRequest
	if pb {
		var msg structpb.Struct
		if err := readProto(r, &msg); err != nil {
			writeError(w, http.StatusBadRequest, "bad_proto", "invalid protobuf body")
			return
		}
		req = heartbeatRequestFromProto(&msg)
	} else if err := decodeJSON(w, r, &req, maxRequestBody); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	resp, err := s.heartbeats.Record(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if pb {
		msg, err := heartbeatResponseToProto(resp)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeProto(w, http.StatusOK, msg)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTerminalEvent(w http.ResponseWriter, r *http.Request) {
	pb := isProtobuf(r)

	var te types.TerminalEvent
	if pb {
		var msg structpb.Struct
		if err := readProto(r, &msg); err != nil {
			writeError(w, http.StatusBadRequest, "bad_proto", "invalid protobuf body")
			return
		}
		var err error
		if te, err = terminalEventFromProto(&msg); err != nil {
			writeError(w, http.StatusBadRequest, "bad_proto", err.Error())
			return
		}
	} else if err := decodeJSON(w, r, &te, maxRequestBody); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	res, err := s.monitor.Ingest(r.Context(), te)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp := terminalResponse(res, s.now())

	if pb {
		msg, err := terminalResponseToProto(resp)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeProto(w, http.StatusAccepted, msg)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}
