package buildpipeline

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

// emit sends one event to an optional sink.
func emit(sink ProgressSink, evt Event) {
	if sink == nil {
		return
	}
	sink.OnEvent(evt)
}

// emitGrammars sends the same stage/status for a batch of grammar names.
func emitGrammars(sink ProgressSink, names []string, platformID string, stage Stage, status Status) {
	if sink == nil {
		return
	}
	for _, name := range names {
		sink.OnEvent(Event{Grammar: name, Platform: platformID, Stage: stage, Status: status})
	}
}
