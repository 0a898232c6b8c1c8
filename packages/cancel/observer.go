package cancel

// Observer is the single view the transport layer has of a cancellation
// source, whether it is a Token or a Signal.
type Observer interface {
	// Fired returns the reason if cancellation was already requested.
	Fired() *Cancel
	// Subscribe registers fn and returns its removal. If the source has
	// already fired, fn runs immediately.
	Subscribe(fn func(reason *Cancel)) (unsubscribe func())
}

type tokenObserver struct {
	token *Token
}

// TokenObserver observes a Token.
func TokenObserver(t *Token) Observer {
	return tokenObserver{token: t}
}

func (o tokenObserver) Fired() *Cancel {
	return o.token.Reason()
}

func (o tokenObserver) Subscribe(fn func(reason *Cancel)) func() {
	id := o.token.Subscribe(Listener(fn))
	return func() { o.token.Unsubscribe(id) }
}

type signalObserver struct {
	signal Signal
}

// SignalObserver observes a Signal. Its reason always carries DefaultMessage.
func SignalObserver(s Signal) Observer {
	return signalObserver{signal: s}
}

func (o signalObserver) Fired() *Cancel {
	if o.signal.Aborted() {
		return &Cancel{Message: DefaultMessage}
	}
	return nil
}

func (o signalObserver) Subscribe(fn func(reason *Cancel)) func() {
	return o.signal.AddAbortListener(func() {
		fn(&Cancel{Message: DefaultMessage})
	})
}

// Observe returns observers for whichever of token and signal are set.
func Observe(token *Token, signal Signal) []Observer {
	var obs []Observer
	if token != nil {
		obs = append(obs, TokenObserver(token))
	}
	if signal != nil {
		obs = append(obs, SignalObserver(signal))
	}
	return obs
}

// FirstFired returns the reason of the first observer that already fired.
func FirstFired(obs []Observer) *Cancel {
	for _, o := range obs {
		if r := o.Fired(); r != nil {
			return r
		}
	}
	return nil
}
