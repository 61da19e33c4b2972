package labelstore

const (
	signInMutation = `
	mutation SignIn($email: String!, $password: String!) {
		signIn(email: $email, password: $password) {
			token
			user {
				id
				email
			}
		}
	}`

	projectQuery = `
	query Project($projectID: ID!) {
		project(id: $projectID) {
			id
			title
			interface {
				jobs {
					name
					categories {
						name
					}
				}
			}
		}
	}`

	assetsQuery = `
	query Assets($projectID: ID!, $first: Int!, $skip: Int!) {
		assets(projectID: $projectID, first: $first, skip: $skip) {
			id
			externalId
			content
			labels {
				id
				labelType
				createdAt
				jsonResponse
			}
		}
	}`

	appendManyToDatasetMutation = `
	mutation AppendManyToDataset($projectID: ID!, $contentArray: [String!]!, $externalIDArray: [String!]!) {
		appendManyToDataset(projectID: $projectID, contentArray: $contentArray, externalIDArray: $externalIDArray) {
			id
		}
	}`

	createPredictionsMutation = `
	mutation CreatePredictions($projectID: ID!, $externalIDArray: [String!]!, $modelNameArray: [String!]!, $jsonResponseArray: [String!]!) {
		createPredictions(projectID: $projectID, externalIDArray: $externalIDArray, modelNameArray: $modelNameArray, jsonResponseArray: $jsonResponseArray) {
			id
			externalId
		}
	}`
)
