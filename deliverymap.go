package amqp

// deliveryMap indexes a session's in-flight deliveries by delivery-id in
// one direction (incoming or outgoing), so a DISPOSITION's first/last
// range resolves to deliveries without scanning every unsettled
// delivery on every link of the session. Grounded on proton-c's
// pn_delivery_map_t (engine.c); simplified from its ring-buffer-by-
// local-offset representation to a plain Go map, since Go's map already
// gives the O(1) lookup that ring buffer existed to provide.
type deliveryMap struct {
	byID map[uint32]*Delivery
}

func newDeliveryMap() *deliveryMap {
	return &deliveryMap{byID: make(map[uint32]*Delivery)}
}

func (m *deliveryMap) put(id uint32, d *Delivery) {
	m.byID[id] = d
}

func (m *deliveryMap) get(id uint32) (*Delivery, bool) {
	d, ok := m.byID[id]
	return d, ok
}

func (m *deliveryMap) remove(id uint32) {
	delete(m.byID, id)
}

func (m *deliveryMap) len() int { return len(m.byID) }

// each invokes fn for every delivery whose id falls in [first, last],
// the range a DISPOSITION batches dispositions over (§4.6).
func (m *deliveryMap) each(first, last uint32, fn func(*Delivery)) {
	for id := first; ; id++ {
		if d, ok := m.byID[id]; ok {
			fn(d)
		}
		if id == last {
			return
		}
	}
}
