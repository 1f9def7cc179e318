package database

import (
	"sync"

	"github.com/globalsign/mgo"
	"github.com/globalsign/mgo/bson"
	log "github.com/sirupsen/logrus"
)

type (
	// BulkChange represents mgo upserts, updates, and removals
	BulkChange struct {
		Selector  interface{} // The selector document
		Update    interface{} // The update document if updating the document
		Upsert    bool        // Whether to insert in case the document isn't found
		Remove    bool        // Whether to remove the document found rather than updating
		SelectAll bool        // Whether to use RemoveAll/ UpdateAll
	}

	// BulkChanges is a map of collections to the changes that should be applied to each one
	BulkChanges map[string][]BulkChange

	// BulkWriter batches bulk updates for MongoDB on a single write thread
	BulkWriter struct {
		db           *DB
		log          *log.Logger
		writeChannel chan BulkChanges
		writeWg      *sync.WaitGroup
		writerName   string // used in error reporting
		unordered    bool   // unordered bulks may be applied in parallel by MongoDB
		maxBulkCount int    // max number of changes in each bulk update
		maxBulkSize  int    // max total BSON size of each bulk update

		errMu   sync.Mutex
		err     error
		applied int
	}
)

// Size serializes the changes to BSON using provided buffer and returns total size
// of the BSON description of the changes. Note this method slightly underestimates the
// total amount BSON needed to describe the changes since extra flags may be sent along.
func (m BulkChange) Size(buffer []byte) ([]byte, int) {
	size := 0
	buffer = buffer[:0]

	if m.Selector != nil {
		buffer, _ = bson.MarshalBuffer(m.Selector, buffer)
		size += len(buffer)
		buffer = buffer[:0]
	}
	if m.Update != nil {
		buffer, _ = bson.MarshalBuffer(m.Update, buffer)
		size += len(buffer)
		buffer = buffer[:0]
	}
	return buffer, size
}

// Apply adds the change described to a bulk buffer
func (m BulkChange) Apply(bulk *mgo.Bulk) {
	if m.Selector == nil {
		return // can't describe a change without a selector
	}

	switch {
	case m.Remove && m.SelectAll:
		bulk.RemoveAll(m.Selector)
	case m.Remove:
		bulk.Remove(m.Selector)
	case m.Update != nil && m.Upsert:
		bulk.Upsert(m.Selector, m.Update)
	case m.Update != nil && m.SelectAll:
		bulk.UpdateAll(m.Selector, m.Update)
	case m.Update != nil:
		bulk.Update(m.Selector, m.Update)
	}
}

// NewBulkWriter creates a new writer object to write output data to collections
func NewBulkWriter(db *DB, logger *log.Logger, unorderedWritesOK bool, writerName string) *BulkWriter {
	return &BulkWriter{
		db:           db,
		log:          logger,
		writeChannel: make(chan BulkChanges),
		writeWg:      new(sync.WaitGroup),
		writerName:   writerName,
		unordered:    unorderedWritesOK,
		maxBulkCount: 500,
		maxBulkSize:  15 * 1000 * 1000,
	}
}

// Collect sends a group of changes to the writer
func (w *BulkWriter) Collect(data BulkChanges) {
	w.writeChannel <- data
}

// Close waits for the write thread to finish and returns the first
// error reported by MongoDB, if any
func (w *BulkWriter) Close() error {
	close(w.writeChannel)
	w.writeWg.Wait()

	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

// Applied returns the number of changes handed to MongoDB so far
func (w *BulkWriter) Applied() int {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.applied
}

// Start kicks off the write thread
func (w *BulkWriter) Start() {
	w.writeWg.Add(1)
	go func() {
		defer w.writeWg.Done()

		ssn := w.db.Session.Copy()
		defer ssn.Close()

		bulkBuffers := map[string]*mgo.Bulk{}
		bulkBufferSizes := map[string]int{}
		bulkBufferLengths := map[string]int{}
		var sizeBuffer []byte
		var changeSize int

		for data := range w.writeChannel {
			for tgtColl, bulkChanges := range data {
				bulkBuffer, bufferExists := bulkBuffers[tgtColl]
				if !bufferExists {
					bulkBuffer = w.newBulk(ssn, tgtColl)
					bulkBuffers[tgtColl] = bulkBuffer
				}

				for _, change := range bulkChanges {
					sizeBuffer, changeSize = change.Size(sizeBuffer)

					if bulkBufferLengths[tgtColl] >= w.maxBulkCount || bulkBufferSizes[tgtColl]+changeSize >= w.maxBulkSize {
						w.run(tgtColl, bulkBuffer, bulkBufferLengths[tgtColl])
						// a bulk cannot be reused once run
						bulkBuffer = w.newBulk(ssn, tgtColl)
						bulkBuffers[tgtColl] = bulkBuffer
						bulkBufferLengths[tgtColl] = 0
						bulkBufferSizes[tgtColl] = 0
					}

					change.Apply(bulkBuffer)
					bulkBufferLengths[tgtColl]++
					bulkBufferSizes[tgtColl] += changeSize
				}
			}
		}
		for tgtColl, bulkBuffer := range bulkBuffers {
			if bulkBufferLengths[tgtColl] > 0 {
				w.run(tgtColl, bulkBuffer, bulkBufferLengths[tgtColl])
			}
		}
	}()
}

func (w *BulkWriter) newBulk(ssn *mgo.Session, coll string) *mgo.Bulk {
	bulk := ssn.DB(w.db.SelectedDB()).C(coll).Bulk()
	if w.unordered {
		bulk.Unordered()
	}
	return bulk
}

func (w *BulkWriter) run(coll string, bulk *mgo.Bulk, count int) {
	info, err := bulk.Run()

	w.errMu.Lock()
	defer w.errMu.Unlock()
	if err != nil {
		w.log.WithFields(log.Fields{
			"Module":     w.writerName,
			"Collection": coll,
			"Info":       info,
		}).Error(err)
		if w.err == nil {
			w.err = err
		}
		return
	}
	w.applied += count
}
