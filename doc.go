// Package percept provides a Go client for the perceptd ops API: health
// and pipeline status, vocabulary inspection and the three learning
// triggers (user memory, scene descriptions, points of interest).
//
//	client, _ := percept.New("http://wearable.local:8080",
//	    percept.WithAPIKey(os.Getenv("PERCEPT_API_KEY")),
//	)
//
//	// Teach one object directly.
//	res, _ := client.Teach(ctx, "red mug", map[string]string{"owner": "dad"})
//	if res.Added {
//	    fmt.Println("the detector now looks for", res.Name)
//	}
//
//	// Feed a scene description; admitted nouns come back.
//	admitted, _ := client.LearnDescription(ctx, "a stroller parked by the glass door")
//
//	// Inspect what the learner currently runs on.
//	vocab, _ := client.Vocabulary(ctx)
//	fmt.Println("classes:", len(vocab.Classes), "dynamic:", len(vocab.Dynamic))
package percept
