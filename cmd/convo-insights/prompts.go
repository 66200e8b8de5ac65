package main

const analysisInstructions = `You analyze one anonymized text-message conversation between the device owner ("me") and one contact.
Names and identifiers appear as placeholders like [[PERSON_1]] or [[PHONE_1_1]]; treat them as opaque labels and reuse them verbatim.
Use the conversation metadata, the messages, and the provided style profile of the owner.
Report only what the data supports. Keep each field concise and concrete.
- relationship_summary: 2-4 sentences on the apparent relationship and its dynamics.
- communication_tone: the prevailing tone of the exchange.
- recurring_topics: up to 8 short topic labels.
- suggested_reply_style: how a reply written on the owner's behalf should sound, grounded in the style profile.
- notable_observations: up to 5 specific observations (shifts in frequency, unanswered stretches, notable events).`
