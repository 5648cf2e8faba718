package server

import (
	"github.com/alx-home/msfs2024-vfrnav-efb/internal/presets"
	"github.com/alx-home/msfs2024-vfrnav-efb/internal/protocol"
)

// handlePreset feeds preset messages to the stores and delivers the
// resulting actions. Runs on the dispatch queue.
func (s *Server) handlePreset(from uint64, msg protocol.Message) bool {
	switch msg.Kind {
	case protocol.KindFuelPresets:
		var req protocol.FuelPresets
		if s.decodeLocal(from, msg, &req) {
			s.apply(presets.KindFuel, from, s.fuel.Reconcile(from, req.Data))
		}

	case protocol.KindGetFuelPresets:
		s.apply(presets.KindFuel, from, s.fuel.Reconcile(from, nil))

	case protocol.KindFuelCurve:
		var req protocol.FuelPresetCurve
		if s.decodeLocal(from, msg, &req) {
			actions, _ := s.fuel.ApplyCurve(presets.Preset[protocol.FuelCurve]{Name: req.Name, Date: req.Date, Curve: req.Curve})
			s.apply(presets.KindFuel, from, actions)
		}

	case protocol.KindDeleteFuelPreset:
		var req protocol.DeleteFuelPreset
		if s.decodeLocal(from, msg, &req) {
			actions, _ := s.fuel.ApplyCurve(presets.Preset[protocol.FuelCurve]{Name: req.Name, Date: req.Date})
			s.apply(presets.KindFuel, from, actions)
		}

	case protocol.KindGetFuelCurve:
		var req protocol.GetFuelCurve
		if s.decodeLocal(from, msg, &req) {
			if p, ok := s.fuel.Get(req.Name); ok {
				s.apply(presets.KindFuel, from, []presets.Action{{Target: presets.ToSender, Content: curveMessage(presets.Fuel, p)}})
			}
		}

	case protocol.KindDefaultFuelPreset:
		var req protocol.DefaultFuelPreset
		if s.decodeLocal(from, msg, &req) && s.fuel.SetDefault(req.Name, req.Date) {
			s.apply(presets.KindFuel, from, []presets.Action{{Target: presets.ToAll, Content: req}})
		}

	case protocol.KindDeviationPresets:
		var req protocol.DeviationPresets
		if s.decodeLocal(from, msg, &req) {
			s.apply(presets.KindDeviation, from, s.deviation.Reconcile(from, req.Data))
		}

	case protocol.KindGetDeviationPresets:
		s.apply(presets.KindDeviation, from, s.deviation.Reconcile(from, nil))

	case protocol.KindDeviationCurve:
		var req protocol.DeviationCurve
		if s.decodeLocal(from, msg, &req) {
			actions, _ := s.deviation.ApplyCurve(presets.Preset[[2]int16]{Name: req.Name, Date: req.Date, Curve: req.Curve})
			s.apply(presets.KindDeviation, from, actions)
		}

	case protocol.KindDeleteDevPreset:
		var req protocol.DeleteDeviationPreset
		if s.decodeLocal(from, msg, &req) {
			actions, _ := s.deviation.ApplyCurve(presets.Preset[[2]int16]{Name: req.Name, Date: req.Date})
			s.apply(presets.KindDeviation, from, actions)
		}

	case protocol.KindGetDeviationCurve:
		var req protocol.GetDeviationCurve
		if s.decodeLocal(from, msg, &req) {
			if p, ok := s.deviation.Get(req.Name); ok {
				s.apply(presets.KindDeviation, from, []presets.Action{{Target: presets.ToSender, Content: curveMessage(presets.Deviation, p)}})
			}
		}

	case protocol.KindDefaultDevPreset:
		var req protocol.DefaultDeviationPreset
		if s.decodeLocal(from, msg, &req) && s.deviation.SetDefault(req.Name, req.Date) {
			s.apply(presets.KindDeviation, from, []presets.Action{{Target: presets.ToAll, Content: req}})
		}

	default:
		return false
	}
	return true
}

// apply delivers preset actions on behalf of from. Broadcasts reach the
// sender too so every surface converges on the same collection.
func (s *Server) apply(family string, from uint64, actions []presets.Action) {
	for _, a := range actions {
		msg, err := protocol.New(a.Content)
		if err != nil {
			s.logger.Error("encode preset message", "family", family, "err", err)
			continue
		}
		s.metrics.PresetAction(family, a.Target.String())

		switch a.Target {
		case presets.ToSender:
			s.sendTo(from, protocol.BroadcastID, msg)
		case presets.ToAll:
			for _, id := range s.handlerIDs() {
				s.sendTo(id, protocol.BroadcastID, msg)
			}
		}
	}
}

func curveMessage[E any](f presets.Family[E], p presets.Preset[E]) protocol.Content {
	if p.Removed() {
		return f.Delete(p.Name, p.Date)
	}
	return f.Curve(p)
}
